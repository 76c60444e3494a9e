package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/roach88/actionstore/internal/action"
)

// writeTable prints one line per action.
func writeTable(w io.Writer, actions []action.Action) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTIMESTAMP\tCOMPANY\tACTION\tAGENTS")
	for _, a := range actions {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s.%s\t%d\n",
			a.ID, a.Timestamp, orDash(a.CompanyID), a.Action.Type, a.Action.Verb, len(a.Agents))
	}
	return tw.Flush()
}

// writeDocument prints a as indented JSON.
func writeDocument(w io.Writer, a action.Action) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
