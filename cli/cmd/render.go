package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"patientledger/cli/api"
)

func (a *app) render(w io.Writer, v any, plain func(io.Writer)) error {
	if a.output == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	plain(w)
	return nil
}

func stamp(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(time.RFC3339)
}

func printReceipt(w io.Writer, r api.Receipt) {
	fmt.Fprintf(w, "Committed: %s seq=%d tx=%s\n", r.Op, r.Seq, r.TxID)
}

func printEntries(w io.Writer, entries []api.Entry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SEQ\tOP\tVALUE\tCOMMITTED")
	for _, e := range entries {
		value := e.ValueCID
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", e.Seq, e.Op, value, stamp(e.CommittedAt))
	}
	tw.Flush()
}
