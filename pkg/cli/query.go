package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/docsearch/pkg/catalog"
	"github.com/platinummonkey/docsearch/pkg/index"
	"github.com/platinummonkey/docsearch/pkg/observability"
	"github.com/platinummonkey/docsearch/pkg/rank"
	"github.com/platinummonkey/docsearch/pkg/search"
)

const defaultIndexPath = "search-index.js"

func newQueryCommand(out io.Writer) *Command {
	cmd := newCommand("query", "Search a local index file", out)

	indexPath := cmd.Flags.String("index", defaultIndexPath, "Path to the search index (script or JSON)")
	limit := cmd.Flags.Int("limit", 10, "Maximum number of results")
	weights := cmd.Flags.String("weights", "", "YAML file with ranking weights")
	asJSON := cmd.Flags.Bool("json", false, "Print the full response as JSON")
	timeout := cmd.Flags.Duration("timeout", 5*time.Second, "Query timeout")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}
		text := strings.Join(cmd.Flags.Args(), " ")

		ctx, cancel := context.WithTimeout(context.Background(), *timeout)
		defer cancel()

		cat, err := loadCatalog(ctx, *indexPath)
		if err != nil {
			return err
		}
		ranker, err := loadRanker(*weights)
		if err != nil {
			return err
		}

		engine := search.NewEngine(search.Static(cat),
			search.WithRanker(ranker),
			search.WithLogger(observability.Nop()),
		)
		resp, err := engine.Search(ctx, search.Request{Query: text, Limit: *limit})
		if err != nil {
			return fmt.Errorf("query failed: %w", err)
		}
		return printResponse(out, resp, *asJSON)
	}

	return cmd
}

func loadCatalog(ctx context.Context, path string) (*catalog.Catalog, error) {
	data, err := index.FileSource{Path: path}.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	cat, err := index.Load(data)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}
	return cat, nil
}

func loadRanker(weightsPath string) (*rank.Ranker, error) {
	if weightsPath == "" {
		return rank.Default(), nil
	}
	w, err := rank.LoadWeights(weightsPath)
	if err != nil {
		return nil, err
	}
	return rank.NewRanker(w)
}

func printJSON(out io.Writer, v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResponse(out io.Writer, resp *search.Response, asJSON bool) error {
	if asJSON {
		return printJSON(out, resp)
	}
	if len(resp.Results) == 0 {
		fmt.Fprintln(out, "no results")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, r := range resp.Results {
		fmt.Fprintf(tw, "%.3f\t%s\t%s\t%s\n", r.Score, r.Kind, r.FullPath, r.Signature)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if resp.TotalCount > len(resp.Results) {
		fmt.Fprintf(out, "(%d of %d matches)\n", len(resp.Results), resp.TotalCount)
	}
	return nil
}
