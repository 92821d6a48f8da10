package cli

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/platinummonkey/docsearch/pkg/observability"
	"github.com/platinummonkey/docsearch/pkg/search"
)

func newLookupCommand(out io.Writer) *Command {
	cmd := newCommand("lookup", "Show one item by its full path", out)

	indexPath := cmd.Flags.String("index", defaultIndexPath, "Path to the search index (script or JSON)")
	asJSON := cmd.Flags.Bool("json", false, "Print the item as JSON")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		if cmd.Flags.NArg() != 1 {
			return fmt.Errorf("lookup takes exactly one path, e.g. alpha::Widget::render")
		}

		engine, err := localEngine(*indexPath)
		if err != nil {
			return err
		}
		r, err := engine.Lookup(cmd.Flags.Arg(0))
		if err != nil {
			return err
		}
		if *asJSON {
			return printJSON(out, r)
		}

		fmt.Fprintf(out, "%s %s\n", r.Kind, r.FullPath)
		if r.Signature != "" {
			fmt.Fprintf(out, "  signature: %s\n", r.Signature)
		}
		if r.Deprecated {
			fmt.Fprintln(out, "  deprecated")
		}
		if r.Description != "" {
			fmt.Fprintf(out, "\n%s\n", r.Description)
		}
		return nil
	}

	return cmd
}

func newStatsCommand(out io.Writer) *Command {
	cmd := newCommand("stats", "Summarize a local index file", out)

	indexPath := cmd.Flags.String("index", defaultIndexPath, "Path to the search index (script or JSON)")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		engine, err := localEngine(*indexPath)
		if err != nil {
			return err
		}
		stats, version, err := engine.Stats()
		if err != nil {
			return err
		}
		nss, err := engine.Namespaces()
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "version:    %s\n", version)
		fmt.Fprintf(out, "items:      %d (%d function-like, %d duplicates dropped)\n",
			stats.Items, stats.FunctionLike, stats.Duplicates)
		fmt.Fprintln(out, "kinds:")
		for _, kind := range slices.Sorted(maps.Keys(stats.ByKind)) {
			fmt.Fprintf(out, "  %-14s %d\n", kind, stats.ByKind[kind])
		}
		fmt.Fprintf(out, "namespaces: %d\n", stats.Namespaces)
		for _, ns := range nss {
			fmt.Fprintf(out, "  %-14s %d\n", ns.ID, ns.Items)
		}
		return nil
	}

	return cmd
}

func localEngine(indexPath string) (*search.Engine, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cat, err := loadCatalog(ctx, indexPath)
	if err != nil {
		return nil, err
	}
	return search.NewEngine(search.Static(cat), search.WithLogger(observability.Nop())), nil
}
