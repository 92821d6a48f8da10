package cli

import (
	"fmt"
	"io"

	"github.com/platinummonkey/docsearch/pkg/rank"
)

func newWeightsCommand(out io.Writer) *Command {
	cmd := newCommand("weights", "Write the default ranking weights or check a weights file", out)

	output := cmd.Flags.String("out", "weights.yaml", "File to write the default weights to")
	check := cmd.Flags.String("check", "", "Validate this weights file instead of writing one")

	cmd.Run = func(args []string) error {
		if err := cmd.Flags.Parse(args); err != nil {
			return err
		}

		if *check != "" {
			if _, err := rank.LoadWeights(*check); err != nil {
				return err
			}
			fmt.Fprintf(out, "%s: ok\n", *check)
			return nil
		}

		if err := rank.SaveWeights(rank.DefaultWeights(), *output); err != nil {
			return err
		}
		fmt.Fprintf(out, "Default weights written to %s\n", *output)
		return nil
	}

	return cmd
}
