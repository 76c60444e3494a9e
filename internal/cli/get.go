package cli

import (
	"github.com/spf13/cobra"
)

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Print one stored action",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			h, err := rootOpts.openBackend(cmd.Context(), f)
			if err != nil {
				return report(f, "cannot open backend", err)
			}
			defer h.Close()

			a, err := h.FindActionByID(cmd.Context(), args[0])
			if err != nil {
				return report(f, "get failed", err)
			}
			if f.Format == "json" {
				return f.SuccessFrom(h.Name(), a)
			}
			return writeDocument(f.Writer, a)
		},
	}
}
