package action

import (
	"fmt"
	"math"
	"strings"
)

// SortDirection orders FindManyActions results.
type SortDirection string

const (
	SortAsc  SortDirection = "asc"
	SortDesc SortDirection = "desc"
)

// Defaults applied when FindActionOptions leave a field unset.
const (
	DefaultLimit  = 100
	DefaultSortBy = "timestamp"
)

// FindActionOptions carry pagination and sorting. Zero values mean unset.
// Page is 1-based.
type FindActionOptions struct {
	Page          int           `json:"page,omitempty"`
	Limit         int           `json:"limit,omitempty"`
	SortBy        string        `json:"sortBy,omitempty"`
	SortDirection SortDirection `json:"sortDirection,omitempty"`
}

// ValidateOptions checks options and returns them unchanged when valid.
func ValidateOptions(o FindActionOptions) (FindActionOptions, error) {
	if errs := o.Validate(); len(errs) > 0 {
		return FindActionOptions{}, ValidationErrors(errs)
	}
	return o, nil
}

// Validate checks the options' structure and returns every violation.
func (o *FindActionOptions) Validate() []ValidationError {
	var errs []ValidationError
	if o.Page < 0 {
		errs = append(errs, ValidationError{Field: "page", Message: "must be a positive integer"})
	}
	if o.Limit < 0 {
		errs = append(errs, ValidationError{Field: "limit", Message: "must be a positive integer"})
	}
	if o.SortBy != "" && slicesContainsEmpty(strings.Split(o.SortBy, ".")) {
		errs = append(errs, ValidationError{Field: "sortBy", Message: "must be a dotted field path"})
	}
	switch o.SortDirection {
	case "", SortAsc, SortDesc:
	default:
		errs = append(errs, ValidationError{
			Field:   "sortDirection",
			Message: fmt.Sprintf("must be %q or %q, got %q", SortAsc, SortDesc, o.SortDirection),
		})
	}
	return errs
}

// EffectiveLimit returns Limit or DefaultLimit when unset.
func (o *FindActionOptions) EffectiveLimit() int {
	if o == nil || o.Limit <= 0 {
		return DefaultLimit
	}
	return o.Limit
}

// Offset returns the number of records skipped before the requested page.
// Pages whose offset would overflow an int saturate at math.MaxInt.
func (o *FindActionOptions) Offset() int {
	if o == nil || o.Page <= 1 {
		return 0
	}
	limit := o.EffectiveLimit()
	if o.Page-1 > math.MaxInt/limit {
		return math.MaxInt
	}
	return (o.Page - 1) * limit
}

// SortPath returns the sort field split into path segments.
func (o *FindActionOptions) SortPath() []string {
	if o == nil || o.SortBy == "" {
		return []string{DefaultSortBy}
	}
	return strings.Split(o.SortBy, ".")
}

// Descending reports whether results sort high to low. Desc is the default.
func (o *FindActionOptions) Descending() bool {
	return o == nil || o.SortDirection != SortAsc
}

func slicesContainsEmpty(parts []string) bool {
	for _, p := range parts {
		if p == "" {
			return true
		}
	}
	return false
}
