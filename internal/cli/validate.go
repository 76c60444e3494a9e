package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/schema"
)

// Document kinds accepted by validate --kind.
const (
	KindActions = "actions"
	KindFilters = "filters"
	KindOptions = "options"
)

// ValidateResult is the JSON payload of a successful validate.
type ValidateResult struct {
	Kind  string `json:"kind"`
	Count int    `json:"count"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	var kind string

	cmd := &cobra.Command{
		Use:   "validate <file|->",
		Short: "Check actions, filters or options without storing anything",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, rootOpts, kind, args[0])
		},
	}

	cmd.Flags().StringVar(&kind, "kind", KindActions, "document kind (actions|filters|options)")
	return cmd
}

func runValidate(cmd *cobra.Command, rootOpts *RootOptions, kind, path string) error {
	f := rootOpts.formatter(cmd)

	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return report(f, "cannot read input", err)
	}
	f.VerboseLog("Validating %s from %s", kind, path)

	count := 1
	switch kind {
	case KindActions:
		var actions []action.Action
		actions, err = schema.ParseActions(data)
		count = len(actions)
	case KindFilters:
		_, err = schema.ParseFilters(data)
	case KindOptions:
		_, err = schema.ParseOptions(data)
	default:
		return NewExitError(ExitCommandError, fmt.Sprintf("unknown kind %q: must be actions, filters or options", kind))
	}

	if err != nil {
		errs, ok := action.AsValidationErrors(err)
		if !ok {
			return report(f, "validation failed", err)
		}
		return outputViolations(f, errs)
	}

	if f.Format == "json" {
		return f.Success(ValidateResult{Kind: kind, Count: count})
	}
	fmt.Fprintf(f.Writer, "✓ %s valid (%d)\n", kind, count)
	return nil
}

func outputViolations(f *OutputFormatter, errs action.ValidationErrors) error {
	msg := fmt.Sprintf("validation failed with %d error(s)", len(errs))
	if f.Format == "json" {
		if err := f.Error(ErrCodeValidation, msg, violations(errs)); err != nil {
			return WrapExitError(ExitCommandError, "write output", err)
		}
		return NewExitError(ExitFailure, msg)
	}

	fmt.Fprintln(f.Writer, "✗ Validation failed")
	printViolations(f.Writer, violations(errs))
	return WrapExitError(ExitFailure, msg, errs)
}
