package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/actionstore/internal/schema"
)

// FindOptions holds flags for the find command.
type FindOptions struct {
	FiltersFile string
	OptionsFile string

	Company string
	Start   string
	End     string
	Query   string
	App     []string

	Page    int
	Limit   int
	SortBy  string
	SortDir string
}

// NewFindCommand creates the find command.
func NewFindCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &FindOptions{}

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Query stored actions",
		Long: `Query stored actions of one company.

Filters and options can come from JSON or YAML files; flags override the
matching fields of those files.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, rootOpts, opts)
		},
	}

	cmd.Flags().StringVar(&opts.FiltersFile, "filters", "", "filters file (JSON or YAML)")
	cmd.Flags().StringVar(&opts.OptionsFile, "options", "", "options file (JSON or YAML)")
	cmd.Flags().StringVar(&opts.Company, "company", "", "company id")
	cmd.Flags().StringVar(&opts.Start, "start", "", "earliest timestamp, inclusive (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "latest timestamp, inclusive (RFC 3339)")
	cmd.Flags().StringVarP(&opts.Query, "query", "q", "", "free-text search")
	cmd.Flags().StringSliceVar(&opts.App, "app", nil, "app name (repeatable)")
	cmd.Flags().IntVar(&opts.Page, "page", 0, "page number, starting at 1")
	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "page size")
	cmd.Flags().StringVar(&opts.SortBy, "sort-by", "", "dotted sort field (default timestamp)")
	cmd.Flags().StringVar(&opts.SortDir, "sort-dir", "", "sort direction (asc|desc)")

	return cmd
}

func runFind(cmd *cobra.Command, rootOpts *RootOptions, opts *FindOptions) error {
	f := rootOpts.formatter(cmd)
	flags := cmd.Flags()

	filterDoc, err := loadObject(opts.FiltersFile, cmd)
	if err != nil {
		return report(f, "cannot read filters", err)
	}
	setIf(filterDoc, "companyId", opts.Company, flags.Changed("company"))
	setIf(filterDoc, "start", opts.Start, flags.Changed("start"))
	setIf(filterDoc, "end", opts.End, flags.Changed("end"))
	setIf(filterDoc, "query", opts.Query, flags.Changed("query"))
	setIf(filterDoc, "app", opts.App, flags.Changed("app"))

	optionDoc, err := loadObject(opts.OptionsFile, cmd)
	if err != nil {
		return report(f, "cannot read options", err)
	}
	setIf(optionDoc, "page", opts.Page, flags.Changed("page"))
	setIf(optionDoc, "limit", opts.Limit, flags.Changed("limit"))
	setIf(optionDoc, "sortBy", opts.SortBy, flags.Changed("sort-by"))
	setIf(optionDoc, "sortDirection", opts.SortDir, flags.Changed("sort-dir"))

	filters, err := parseDoc(filterDoc, schema.ParseFilters)
	if err != nil {
		return report(f, "invalid filters", err)
	}
	findOpts, err := parseDoc(optionDoc, schema.ParseOptions)
	if err != nil {
		return report(f, "invalid options", err)
	}

	h, err := rootOpts.openBackend(cmd.Context(), f)
	if err != nil {
		return report(f, "cannot open backend", err)
	}
	defer h.Close()

	found, err := h.FindManyActions(cmd.Context(), &findOpts, &filters)
	if err != nil {
		return report(f, "find failed", err)
	}

	if f.Format == "json" {
		return f.SuccessFrom(h.Name(), found)
	}
	if err := writeTable(f.Writer, found); err != nil {
		return err
	}
	fmt.Fprintf(f.Writer, "%d action(s)\n", len(found))
	return nil
}

// loadObject reads a JSON or YAML object from path. An empty path yields an
// empty object.
func loadObject(path string, cmd *cobra.Command) (map[string]any, error) {
	doc := map[string]any{}
	if path == "" {
		return doc, nil
	}
	data, err := readInput(path, cmd.InOrStdin())
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &inputError{path: path, err: fmt.Errorf("expected an object: %w", err)}
	}
	return doc, nil
}

func setIf(doc map[string]any, key string, v any, changed bool) {
	if changed {
		doc[key] = v
	}
}

// parseDoc re-encodes doc and runs it through a schema parser so flag values
// are checked exactly like file contents.
func parseDoc[T any](doc map[string]any, parse func([]byte) (T, error)) (T, error) {
	data, err := json.Marshal(doc)
	if err != nil {
		var zero T
		return zero, err
	}
	return parse(data)
}
