package action

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ValidationError represents a validation error with field path and message.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is the aggregated result of a failed validation.
// It lists every violation found, not just the first.
type ValidationErrors []ValidationError

func (errs ValidationErrors) Error() string {
	switch len(errs) {
	case 0:
		return "validation failed"
	case 1:
		return "validation failed: " + errs[0].Error()
	}
	parts := make([]string, len(errs))
	for i, e := range errs {
		parts[i] = e.Error()
	}
	return fmt.Sprintf("validation failed (%d violations): %s", len(errs), strings.Join(parts, "; "))
}

// Fields returns the violated field paths in order.
func (errs ValidationErrors) Fields() []string {
	fields := make([]string, len(errs))
	for i, e := range errs {
		fields[i] = e.Field
	}
	return fields
}

// Prefix returns a copy with every field path prefixed.
func (errs ValidationErrors) Prefix(prefix string) ValidationErrors {
	out := make(ValidationErrors, len(errs))
	for i, e := range errs {
		out[i] = ValidationError{Field: joinField(prefix, e.Field), Message: e.Message}
	}
	return out
}

// AsValidationErrors extracts ValidationErrors from err.
// Uses errors.As to handle wrapped errors.
func AsValidationErrors(err error) (ValidationErrors, bool) {
	var errs ValidationErrors
	if errors.As(err, &errs) {
		return errs, true
	}
	return nil, false
}

func joinField(prefix, field string) string {
	switch {
	case prefix == "":
		return field
	case field == "":
		return prefix
	case strings.HasPrefix(field, "["):
		return prefix + field
	}
	return prefix + "." + field
}

const msgRequired = "is required"

// ValidateAction checks a candidate against the Action schema and returns it
// unchanged when valid.
func ValidateAction(a Action) (Action, error) {
	if errs := a.Validate(); len(errs) > 0 {
		return Action{}, ValidationErrors(errs)
	}
	return a, nil
}

// Validate checks the Action's structure.
// Returns all errors (not fail-fast). Only shape is checked: required fields,
// finite numbers, and well-formed dynamic values.
func (a *Action) Validate() []ValidationError {
	var errs []ValidationError
	required := func(field, v string) {
		if v == "" {
			errs = append(errs, ValidationError{Field: field, Message: msgRequired})
		}
	}

	required("timestamp", a.Timestamp)
	required("action.type", a.Action.Type)
	required("action.verb", a.Action.Verb)

	if a.Agents == nil {
		errs = append(errs, ValidationError{Field: "agents", Message: msgRequired})
	}
	for i, agent := range a.Agents {
		errs = append(errs, agent.validate(fmt.Sprintf("agents[%d]", i))...)
	}
	for i, target := range a.Targets {
		errs = append(errs, target.validate(fmt.Sprintf("targets[%d]", i))...)
	}

	errs = append(errs, validateObject("request", a.Request)...)

	if r := a.Response; r != nil {
		if r.Time != nil && !finite(*r.Time) {
			errs = append(errs, ValidationError{Field: "response.time", Message: "must be a finite number"})
		}
		errs = append(errs, validateObject("response.body", r.Body)...)
		errs = append(errs, validateObject("response.headers", r.Headers)...)
	}

	for i, ch := range a.Changes {
		prefix := fmt.Sprintf("changes[%d]", i)
		required(prefix+".model", ch.Model)
		required(prefix+".operation", ch.Operation)
		if ch.Before != nil {
			errs = append(errs, validateValue(prefix+".before", ch.Before)...)
		}
		if ch.After != nil {
			errs = append(errs, validateValue(prefix+".after", ch.After)...)
		}
		errs = append(errs, validateObject(prefix+".meta", ch.Meta)...)
	}

	if c := a.Cost; c != nil {
		if !finite(c.Amount) {
			errs = append(errs, ValidationError{Field: "cost.amount", Message: "must be a finite number"})
		}
		required("cost.currency", c.Currency)
		for i, comp := range c.Components {
			prefix := fmt.Sprintf("cost.components[%d]", i)
			required(prefix+".key", comp.Key)
			if !finite(comp.Amount) {
				errs = append(errs, ValidationError{Field: prefix + ".amount", Message: "must be a finite number"})
			}
		}
		errs = append(errs, validateObject("cost.meta", c.Meta)...)
	}

	errs = append(errs, validateObject("meta", a.Meta)...)

	return errs
}

func (e Entity) validate(prefix string) []ValidationError {
	var errs []ValidationError
	if e.Type == "" {
		errs = append(errs, ValidationError{Field: prefix + ".type", Message: msgRequired})
	}
	return append(errs, validateObject(prefix+".meta", e.Meta)...)
}

func validateObject(field string, obj Object) []ValidationError {
	if obj == nil {
		return nil
	}
	return validateValue(field, obj)
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
