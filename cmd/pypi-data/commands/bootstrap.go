package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pypi-data/cli/pkg/gitlib"
)

// NewBootstrapCommand creates the bootstrap command.
func NewBootstrapCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap <input> <output>",
		Short: "Materialize pack bundles as bare repositories",
		Long: `Bootstrap groups the files of <input> by stem and installs each
<stem>.pack, <stem>.idx, optional <stem>.rev and <stem>.commits.txt as
<output>/<stem>, a bare store with its commit list, ready to scan.
An existing <output>/<stem> is an error.`,
		Args: cobra.ExactArgs(2),
		RunE: runBootstrap,
	}
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	input, output := args[0], args[1]

	bundles, err := gitlib.FindBundles(input)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	name := color.New(color.Bold).SprintFunc()

	for _, bundle := range bundles {
		target, installErr := bundle.Install(output)
		if installErr != nil {
			return fmt.Errorf("install %s: %w", bundle.Stem, installErr)
		}

		fmt.Fprintf(out, "%s %s -> %s\n", color.GreenString("installed"), name(bundle.Stem), target)
	}

	fmt.Fprintf(out, "%d repositories installed in %s\n", len(bundles), output)

	return nil
}
