// Package schema validates untyped JSON candidates against the CUE
// definitions of Action, FindActionFilters and FindActionOptions before
// decoding them into the typed model.
//
// The typed validators in package action check Go values; this package checks
// raw documents, where wrong-typed fields (a numeric string for cost.amount, a
// mixed-type filter array) are still visible. Both report every violation.
package schema

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cuejson "cuelang.org/go/encoding/json"

	"github.com/roach88/actionstore/internal/action"
)

//go:embed schema.cue
var source string

// Source returns the CUE schema text.
func Source() string {
	return source
}

// Definition names in schema.cue.
const (
	DefAction  = "#Action"
	DefFilters = "#Filters"
	DefOptions = "#Options"
)

// Schema holds the compiled definitions.
// A cue.Context is not safe for concurrent use, so calls are serialized.
type Schema struct {
	mu   sync.Mutex
	ctx  *cue.Context
	defs map[string]cue.Value
}

// New compiles the embedded schema.
func New() (*Schema, error) {
	ctx := cuecontext.New()
	root := ctx.CompileString(source, cue.Filename("schema.cue"))
	if err := root.Err(); err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}

	s := &Schema{ctx: ctx, defs: make(map[string]cue.Value)}
	for _, name := range []string{DefAction, DefFilters, DefOptions} {
		def := root.LookupPath(cue.ParsePath(name))
		if !def.Exists() {
			return nil, fmt.Errorf("schema definition %s not found", name)
		}
		s.defs[name] = def
	}
	return s, nil
}

// Default returns a process-wide Schema, compiled on first use.
var Default = sync.OnceValues(New)

// Check validates a JSON document against the named definition and returns
// every violation found. A nil result means the document conforms.
func (s *Schema) Check(def string, data []byte) action.ValidationErrors {
	d, ok := s.defs[def]
	if !ok {
		return action.ValidationErrors{{Message: fmt.Sprintf("unknown schema definition %s", def)}}
	}

	expr, err := cuejson.Extract("input.json", data)
	if err != nil {
		return action.ValidationErrors{{Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	v := s.ctx.BuildExpr(expr)
	if err := v.Err(); err != nil {
		return action.ValidationErrors{{Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	unified := d.Unify(v)
	if err := unified.Validate(cue.Concrete(true), cue.Final()); err != nil {
		return convertCUEErrors(err)
	}
	return nil
}

// ParseAction validates and decodes one Action document.
func (s *Schema) ParseAction(data []byte) (action.Action, error) {
	if errs := s.Check(DefAction, data); len(errs) > 0 {
		return action.Action{}, errs
	}
	a, err := action.Decode(data)
	if err != nil {
		return action.Action{}, action.ValidationErrors{{Message: err.Error()}}
	}
	return action.ValidateAction(a)
}

// ParseActions decodes either a single Action object or an array of them.
// Violations in array elements are reported as "[i].field".
func (s *Schema) ParseActions(data []byte) ([]action.Action, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		a, err := s.ParseAction(trimmed)
		if err != nil {
			return nil, err
		}
		return []action.Action{a}, nil
	}

	var raws []json.RawMessage
	if err := json.Unmarshal(trimmed, &raws); err != nil {
		return nil, action.ValidationErrors{{Message: fmt.Sprintf("invalid JSON: %v", err)}}
	}

	actions := make([]action.Action, 0, len(raws))
	var all action.ValidationErrors
	for i, raw := range raws {
		a, err := s.ParseAction(raw)
		if err != nil {
			errs, ok := action.AsValidationErrors(err)
			if !ok {
				return nil, err
			}
			all = append(all, errs.Prefix(fmt.Sprintf("[%d]", i))...)
			continue
		}
		actions = append(actions, a)
	}
	if len(all) > 0 {
		return nil, all
	}
	return actions, nil
}

// ParseFilters validates and decodes a FindActionFilters document.
func (s *Schema) ParseFilters(data []byte) (action.FindActionFilters, error) {
	if errs := s.Check(DefFilters, data); len(errs) > 0 {
		return action.FindActionFilters{}, errs
	}
	var f action.FindActionFilters
	if err := json.Unmarshal(data, &f); err != nil {
		return action.FindActionFilters{}, action.ValidationErrors{{Message: err.Error()}}
	}
	return action.ValidateFilters(f)
}

// ParseOptions validates and decodes a FindActionOptions document.
func (s *Schema) ParseOptions(data []byte) (action.FindActionOptions, error) {
	if errs := s.Check(DefOptions, data); len(errs) > 0 {
		return action.FindActionOptions{}, errs
	}
	var o action.FindActionOptions
	if err := json.Unmarshal(data, &o); err != nil {
		return action.FindActionOptions{}, action.ValidationErrors{{Message: err.Error()}}
	}
	return action.ValidateOptions(o)
}

// ParseAction validates and decodes one Action with the Default schema.
func ParseAction(data []byte) (action.Action, error) {
	s, err := Default()
	if err != nil {
		return action.Action{}, err
	}
	return s.ParseAction(data)
}

// ParseActions decodes one Action or an array with the Default schema.
func ParseActions(data []byte) ([]action.Action, error) {
	s, err := Default()
	if err != nil {
		return nil, err
	}
	return s.ParseActions(data)
}

// ParseFilters decodes filters with the Default schema.
func ParseFilters(data []byte) (action.FindActionFilters, error) {
	s, err := Default()
	if err != nil {
		return action.FindActionFilters{}, err
	}
	return s.ParseFilters(data)
}

// ParseOptions decodes options with the Default schema.
func ParseOptions(data []byte) (action.FindActionOptions, error) {
	s, err := Default()
	if err != nil {
		return action.FindActionOptions{}, err
	}
	return s.ParseOptions(data)
}

// convertCUEErrors flattens a CUE error list into ValidationErrors,
// dropping duplicates that disjunctions tend to produce.
func convertCUEErrors(err error) action.ValidationErrors {
	var out action.ValidationErrors
	seen := make(map[action.ValidationError]bool)
	for _, e := range cueerrors.Errors(err) {
		format, args := e.Msg()
		ve := action.ValidationError{
			Field:   fieldPath(e.Path()),
			Message: fmt.Sprintf(format, args...),
		}
		if seen[ve] {
			continue
		}
		seen[ve] = true
		out = append(out, ve)
	}
	if len(out) == 0 {
		out = append(out, action.ValidationError{Message: err.Error()})
	}
	return out
}

// fieldPath renders a CUE path as "agents[0].type". Leading definition
// selectors are dropped.
func fieldPath(path []string) string {
	for len(path) > 0 && strings.HasPrefix(path[0], "#") {
		path = path[1:]
	}
	var b strings.Builder
	for _, seg := range path {
		if unquoted, err := strconv.Unquote(seg); err == nil {
			seg = unquoted
		} else if _, err := strconv.Atoi(seg); err == nil {
			b.WriteString("[" + seg + "]")
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(seg)
	}
	return b.String()
}
