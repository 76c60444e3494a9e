package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/schema"
)

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create <file|->",
		Short: "Store actions from a JSON or YAML file",
		Long: `Store one action or an array of actions.

The input is validated in full before anything is written: a single invalid
element rejects the whole batch.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, rootOpts, args[0])
		},
	}
	return cmd
}

func runCreate(cmd *cobra.Command, rootOpts *RootOptions, path string) error {
	f := rootOpts.formatter(cmd)

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return report(f, "cannot read input", err)
	}
	actions, err := schema.ParseActions(data)
	if err != nil {
		return report(f, "validation failed", err)
	}
	f.VerboseLog("Parsed %d action(s) from %s", len(actions), path)

	h, err := rootOpts.openBackend(cmd.Context(), f)
	if err != nil {
		return report(f, "cannot open backend", err)
	}
	defer h.Close()

	created, err := h.CreateManyActions(cmd.Context(), actions)
	if err != nil {
		return report(f, "create failed", err)
	}

	if f.Format == "json" {
		return f.SuccessFrom(h.Name(), created)
	}
	fmt.Fprintf(f.Writer, "✓ Stored %d action(s) in %s\n", len(created), h.Name())
	return writeTable(f.Writer, created)
}
