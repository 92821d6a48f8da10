package cli

import (
	"flag"
	"fmt"
	"io"
	"maps"
	"slices"
	"strings"
)

// Command represents a CLI command
type Command struct {
	Name        string
	Description string
	Run         func(args []string) error
	Subcommands map[string]*Command
	Flags       *flag.FlagSet

	out io.Writer
}

// NewRootCommand creates the root command. Command output goes to out.
func NewRootCommand(out io.Writer) *Command {
	root := &Command{
		Name:        "docsearch",
		Description: "docsearch - query documentation indexes",
		Subcommands: make(map[string]*Command),
		Flags:       flag.NewFlagSet("docsearch", flag.ContinueOnError),
		out:         out,
	}

	for _, cmd := range []*Command{
		newQueryCommand(out),
		newRemoteCommand(out),
		newLookupCommand(out),
		newStatsCommand(out),
		newWeightsCommand(out),
	} {
		root.Subcommands[cmd.Name] = cmd
	}

	return root
}

// newCommand builds a leaf command whose flags report to out.
func newCommand(name, description string, out io.Writer) *Command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(out)
	return &Command{Name: name, Description: description, Flags: fs, out: out}
}

// Execute runs the subcommand named by args[0] with the remaining args.
func (c *Command) Execute(args []string) error {
	if len(args) == 0 {
		return c.usage()
	}

	// Check for help flag
	if strings.EqualFold(args[0], "-h") || strings.EqualFold(args[0], "--help") || args[0] == "help" {
		return c.usage()
	}

	// Check for subcommand
	if subcmd, ok := c.Subcommands[args[0]]; ok {
		return subcmd.Run(args[1:])
	}

	return fmt.Errorf("unknown command: %s", args[0])
}

// usage prints the command usage
func (c *Command) usage() error {
	fmt.Fprintf(c.out, "Usage: %s <command> [args]\n\n", c.Name)
	fmt.Fprintf(c.out, "Commands:\n")
	for _, name := range slices.Sorted(maps.Keys(c.Subcommands)) {
		fmt.Fprintf(c.out, "  %-15s %s\n", name, c.Subcommands[name].Description)
	}
	return nil
}
