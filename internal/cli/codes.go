package cli

import (
	"errors"
	"fmt"
	"io"

	"github.com/roach88/actionstore/internal/action"
	"github.com/roach88/actionstore/internal/engine"
)

// Error codes reported in CLI output.
const (
	ErrCodeInput      = "E001" // input file missing or not JSON/YAML
	ErrCodeConfig     = "E002" // configuration could not be loaded
	ErrCodeBackend    = "E003" // backend unreachable or failed
	ErrCodeValidation = "E201" // action, filters or options rejected
	ErrCodeNotFound   = "E202" // no action with the requested id
	ErrCodeContract   = "E203" // backend broke the storage contract
)

// report writes err through f and returns the ExitError the command should
// fail with. Validation failures list each violation as a detail.
func report(f *OutputFormatter, msg string, err error) error {
	code, exit := classify(err)
	var details any
	if errs, ok := action.AsValidationErrors(err); ok {
		details = violations(errs)
	} else if err != nil {
		details = err.Error()
	}
	if outErr := f.Error(code, msg, details); outErr != nil {
		return WrapExitError(ExitCommandError, "write output", outErr)
	}
	if v, ok := details.([]Violation); ok && f.Format != "json" && !f.Verbose {
		printViolations(f.Writer, v)
	}
	return WrapExitError(exit, msg, err)
}

func classify(err error) (string, int) {
	var inputErr *inputError
	var configErr *configError
	switch {
	case errors.As(err, &inputErr):
		return ErrCodeInput, ExitCommandError
	case errors.As(err, &configErr):
		return ErrCodeConfig, ExitCommandError
	case engine.IsValidation(err):
		return ErrCodeValidation, ExitFailure
	case engine.IsNotFound(err):
		return ErrCodeNotFound, ExitFailure
	case engine.IsContractError(err):
		return ErrCodeContract, ExitCommandError
	}
	return ErrCodeBackend, ExitCommandError
}

// Violation is one rejected field in CLI output.
type Violation struct {
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

func violations(errs action.ValidationErrors) []Violation {
	out := make([]Violation, len(errs))
	for i, e := range errs {
		out[i] = Violation{Field: e.Field, Message: e.Message}
	}
	return out
}

func printViolations(w io.Writer, vs []Violation) {
	for _, v := range vs {
		if v.Field == "" {
			fmt.Fprintf(w, "  - %s\n", v.Message)
			continue
		}
		fmt.Fprintf(w, "  - %s: %s\n", v.Field, v.Message)
	}
}
