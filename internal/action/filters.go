package action

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// OneOrMany holds a filter leaf that was given either as a single value or
// as an array of values. Matching is OR across the values.
//
// The zero value means the leaf was not given.
type OneOrMany[T any] struct {
	items []T
	many  bool
}

// One returns a single-value leaf.
func One[T any](v T) OneOrMany[T] {
	return OneOrMany[T]{items: []T{v}}
}

// Many returns an array-valued leaf.
func Many[T any](vs ...T) OneOrMany[T] {
	return OneOrMany[T]{items: vs, many: true}
}

// Values normalizes the leaf to a slice: One(v) becomes [v].
func (o OneOrMany[T]) Values() []T {
	return o.items
}

// IsZero reports whether the leaf constrains nothing. An empty array is
// treated the same as an absent leaf.
func (o OneOrMany[T]) IsZero() bool {
	return len(o.items) == 0
}

// IsMany reports whether the leaf was given as an array.
func (o OneOrMany[T]) IsMany() bool {
	return o.many
}

// MarshalJSON writes a bare value for One and an array for Many.
func (o OneOrMany[T]) MarshalJSON() ([]byte, error) {
	switch {
	case o.many:
		if o.items == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(o.items)
	case len(o.items) == 0:
		return []byte("null"), nil
	}
	return json.Marshal(o.items[0])
}

// UnmarshalJSON accepts either a bare value or a homogeneous array.
// An array whose elements do not all decode as T is rejected.
func (o *OneOrMany[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*o = OneOrMany[T]{}
		return nil
	}
	if data[0] == '[' {
		var items []T
		if err := json.Unmarshal(data, &items); err != nil {
			return fmt.Errorf("expected a value or an array of values of one type: %w", err)
		}
		*o = OneOrMany[T]{items: items, many: true}
		return nil
	}
	var v T
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*o = OneOrMany[T]{items: []T{v}}
	return nil
}

// FindActionFilters are the search criteria for FindManyActions. The field
// set mirrors Action: every filterable Action field has a filter field here.
// CompanyID is the only mandatory filter.
type FindActionFilters struct {
	CompanyID   string                      `json:"companyId"`
	Start       string                      `json:"start,omitempty"`
	End         string                      `json:"end,omitempty"`
	Query       string                      `json:"query,omitempty"`
	ID          OneOrMany[string]           `json:"id,omitzero"`
	ClientID    OneOrMany[string]           `json:"clientId,omitzero"`
	App         OneOrMany[string]           `json:"app,omitzero"`
	Environment OneOrMany[string]           `json:"environment,omitzero"`
	Framework   OneOrMany[FrameworkFilter]  `json:"framework,omitzero"`
	SessionID   OneOrMany[string]           `json:"sessionId,omitzero"`
	TraceIDs    OneOrMany[string]           `json:"traceIds,omitzero"`
	Action      OneOrMany[DescriptorFilter] `json:"action,omitzero"`
	Agents      OneOrMany[EntityFilter]     `json:"agents,omitzero"`
	Targets     OneOrMany[EntityFilter]     `json:"targets,omitzero"`
	Request     OneOrMany[RequestFilter]    `json:"request,omitzero"`
	Response    *ResponseFilter             `json:"response,omitempty"`
	Changes     OneOrMany[ChangeFilter]     `json:"changes,omitzero"`
	Cost        *CostFilter                 `json:"cost,omitempty"`
	Meta        OneOrMany[StringMap]        `json:"meta,omitzero"`
}

// StringMap is a flat string-valued mapping. Meta-like filters use it
// instead of the dynamic Value type so they stay cheap to evaluate.
type StringMap map[string]string

// FrameworkFilter matches Action.Framework. Empty fields match anything.
type FrameworkFilter struct {
	Name    string `json:"name,omitempty"`
	Version string `json:"version,omitempty"`
}

// DescriptorFilter matches Action.Action.
type DescriptorFilter struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type,omitempty"`
	Verb   string `json:"verb,omitempty"`
	Object string `json:"object,omitempty"`
}

// EntityFilter matches an element of Action.Agents or Action.Targets.
type EntityFilter struct {
	ID   string    `json:"id,omitempty"`
	Type string    `json:"type,omitempty"`
	Name string    `json:"name,omitempty"`
	Meta StringMap `json:"meta,omitempty"`
}

// RequestFilter matches Action.Request key by key. Values may be nested one
// level deep.
type RequestFilter map[string]RequestMatch

// RequestMatch is either a string (Text) or a flat string mapping (Fields).
type RequestMatch struct {
	Text   string
	Fields StringMap
}

// MarshalJSON writes Fields when set, Text otherwise.
func (m RequestMatch) MarshalJSON() ([]byte, error) {
	if m.Fields != nil {
		return json.Marshal(m.Fields)
	}
	return json.Marshal(m.Text)
}

// UnmarshalJSON accepts a string or an object of strings.
func (m *RequestMatch) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var fields StringMap
		if err := json.Unmarshal(data, &fields); err != nil {
			return err
		}
		*m = RequestMatch{Fields: fields}
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("request filter value must be a string or an object of strings: %w", err)
	}
	*m = RequestMatch{Text: text}
	return nil
}

// ResponseFilter matches Action.Response.
type ResponseFilter struct {
	Status  OneOrMany[string]    `json:"status,omitzero"`
	Time    *Range               `json:"time,omitempty"`
	Body    OneOrMany[StringMap] `json:"body,omitzero"`
	Headers OneOrMany[StringMap] `json:"headers,omitzero"`
}

// Range bounds a numeric field: Gte inclusive, Lt exclusive.
type Range struct {
	Gte *float64 `json:"gte,omitempty"`
	Lt  *float64 `json:"lt,omitempty"`
}

// ChangeFilter matches an element of Action.Changes. Before and After
// compare by structural equality.
type ChangeFilter struct {
	Model     string    `json:"model,omitempty"`
	Operation string    `json:"operation,omitempty"`
	ID        string    `json:"id,omitempty"`
	Path      string    `json:"path,omitempty"`
	Before    Value     `json:"before,omitempty"`
	After     Value     `json:"after,omitempty"`
	Meta      StringMap `json:"meta,omitempty"`
}

type changeFilterJSON struct {
	Model     string          `json:"model,omitempty"`
	Operation string          `json:"operation,omitempty"`
	ID        string          `json:"id,omitempty"`
	Path      string          `json:"path,omitempty"`
	Before    json.RawMessage `json:"before,omitempty"`
	After     json.RawMessage `json:"after,omitempty"`
	Meta      StringMap       `json:"meta,omitempty"`
}

// MarshalJSON encodes Before/After through MarshalValue.
func (c ChangeFilter) MarshalJSON() ([]byte, error) {
	out := changeFilterJSON{Model: c.Model, Operation: c.Operation, ID: c.ID, Path: c.Path, Meta: c.Meta}
	if c.Before != nil {
		raw, err := MarshalValue(c.Before)
		if err != nil {
			return nil, fmt.Errorf("before: %w", err)
		}
		out.Before = raw
	}
	if c.After != nil {
		raw, err := MarshalValue(c.After)
		if err != nil {
			return nil, fmt.Errorf("after: %w", err)
		}
		out.After = raw
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes Before/After into Values.
func (c *ChangeFilter) UnmarshalJSON(data []byte) error {
	var in changeFilterJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*c = ChangeFilter{Model: in.Model, Operation: in.Operation, ID: in.ID, Path: in.Path, Meta: in.Meta}
	if len(in.Before) > 0 {
		v, err := UnmarshalValue(in.Before)
		if err != nil {
			return fmt.Errorf("before: %w", err)
		}
		c.Before = v
	}
	if len(in.After) > 0 {
		v, err := UnmarshalValue(in.After)
		if err != nil {
			return fmt.Errorf("after: %w", err)
		}
		c.After = v
	}
	return nil
}

// CostFilter matches Action.Cost. Components and meta are not filterable.
type CostFilter struct {
	Currency OneOrMany[string] `json:"currency,omitzero"`
	Amount   *Range            `json:"amount,omitempty"`
}

// ValidateFilters checks filters and returns them unchanged when valid.
func ValidateFilters(f FindActionFilters) (FindActionFilters, error) {
	if errs := f.Validate(); len(errs) > 0 {
		return FindActionFilters{}, ValidationErrors(errs)
	}
	return f, nil
}

// Validate checks the filters' structure and returns every violation.
func (f *FindActionFilters) Validate() []ValidationError {
	var errs []ValidationError

	if f.CompanyID == "" {
		errs = append(errs, ValidationError{Field: "companyId", Message: msgRequired})
	}
	errs = append(errs, validateInstant("start", f.Start)...)
	errs = append(errs, validateInstant("end", f.End)...)

	for i, req := range f.Request.Values() {
		for _, k := range sortedMapKeys(req) {
			if m := req[k]; m.Text != "" && m.Fields != nil {
				errs = append(errs, ValidationError{
					Field:   indexed("request", i, f.Request.IsMany()) + "." + k,
					Message: "must be either a string or an object of strings",
				})
			}
		}
	}

	if r := f.Response; r != nil {
		errs = append(errs, r.Time.validate("response.time")...)
	}

	for i, ch := range f.Changes.Values() {
		prefix := indexed("changes", i, f.Changes.IsMany())
		if ch.Before != nil {
			errs = append(errs, validateValue(prefix+".before", ch.Before)...)
		}
		if ch.After != nil {
			errs = append(errs, validateValue(prefix+".after", ch.After)...)
		}
	}

	if c := f.Cost; c != nil {
		errs = append(errs, c.Amount.validate("cost.amount")...)
	}

	return errs
}

// StartTime parses Start. The zero time and false are returned when unset.
func (f *FindActionFilters) StartTime() (time.Time, bool) {
	return parseInstant(f.Start)
}

// EndTime parses End. The zero time and false are returned when unset.
func (f *FindActionFilters) EndTime() (time.Time, bool) {
	return parseInstant(f.End)
}

func (r *Range) validate(field string) []ValidationError {
	if r == nil {
		return nil
	}
	var errs []ValidationError
	if r.Gte != nil && !finite(*r.Gte) {
		errs = append(errs, ValidationError{Field: field + ".gte", Message: "must be a finite number"})
	}
	if r.Lt != nil && !finite(*r.Lt) {
		errs = append(errs, ValidationError{Field: field + ".lt", Message: "must be a finite number"})
	}
	return errs
}

func validateInstant(field, s string) []ValidationError {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(time.RFC3339Nano, s); err != nil {
		return []ValidationError{{Field: field, Message: "must be an ISO-8601 datetime with offset"}}
	}
	return nil
}

// ParseTimestamp parses an RFC 3339 timestamp with an explicit offset.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func parseInstant(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := ParseTimestamp(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func indexed(field string, i int, many bool) string {
	if !many {
		return field
	}
	return fmt.Sprintf("%s[%d]", field, i)
}

func sortedMapKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysUTF16)
	return keys
}
