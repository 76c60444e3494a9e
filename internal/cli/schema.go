package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/schema"
)

// SchemaResult is the JSON payload of the schema command.
type SchemaResult struct {
	Definitions []string `json:"definitions"`
	Source      string   `json:"source"`
}

// NewSchemaCommand creates the schema command.
func NewSchemaCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the CUE schema inputs are checked against",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if f.Format == "json" {
				return f.Success(SchemaResult{
					Definitions: []string{schema.DefAction, schema.DefFilters, schema.DefOptions},
					Source:      schema.Source(),
				})
			}
			_, err := fmt.Fprint(f.Writer, schema.Source())
			return err
		},
	}
}
