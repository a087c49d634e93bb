package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	appnumbering "github.com/aglc/backoffice/internal/application/numbering"
	"github.com/aglc/backoffice/internal/domain/numbering"
	"github.com/spf13/cobra"
)

type output struct {
	json bool
	w    io.Writer
}

func newOutput(cmd *cobra.Command, opts *RootOptions) *output {
	return &output{json: opts.Format == "json", w: cmd.OutOrStdout()}
}

type numberJSON struct {
	Prefix  string `json:"prefix"`
	Period  string `json:"period"`
	Counter uint64 `json:"counter"`
	Display string `json:"display,omitempty"`
}

type counterJSON struct {
	Prefix    string     `json:"prefix"`
	Period    string     `json:"period"`
	LastValue uint64     `json:"last_value"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

func toCounterJSON(sc numbering.SequenceCounter) counterJSON {
	c := counterJSON{Prefix: sc.Key.Prefix, Period: sc.Key.Period, LastValue: sc.LastValue}
	if !sc.UpdatedAt.IsZero() {
		c.UpdatedAt = &sc.UpdatedAt
	}
	return c
}

func (o *output) encode(v any) error {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func (o *output) number(key numbering.PartitionKey, counter uint64, display string) error {
	if o.json {
		return o.encode(numberJSON{Prefix: key.Prefix, Period: key.Period, Counter: counter, Display: display})
	}
	if display != "" {
		_, err := fmt.Fprintln(o.w, display)
		return err
	}
	_, err := fmt.Fprintf(o.w, "prefix=%s period=%s counter=%d\n", key.Prefix, key.Period, counter)
	return err
}

func (o *output) counter(sc numbering.SequenceCounter) error {
	if o.json {
		return o.encode(toCounterJSON(sc))
	}
	_, err := fmt.Fprintf(o.w, "%s last_value=%d\n", sc.Key, sc.LastValue)
	return err
}

func (o *output) backfill(r *appnumbering.BackfillReport) error {
	if o.json {
		return o.encode(r)
	}
	if _, err := fmt.Fprintf(o.w, "%s accepted=%d rejected=%d max_observed=%d last_value=%d\n",
		r.Key, r.Accepted, len(r.Rejected), r.MaxObserved, r.LastValue); err != nil {
		return err
	}
	for _, rej := range r.Rejected {
		if _, err := fmt.Fprintf(o.w, "  skipped %s: %s\n", rej.Display, rej.Reason); err != nil {
			return err
		}
	}
	return nil
}

func (o *output) counters(list []numbering.SequenceCounter) error {
	if o.json {
		out := make([]counterJSON, len(list))
		for i, sc := range list {
			out[i] = toCounterJSON(sc)
		}
		return o.encode(out)
	}

	tw := tabwriter.NewWriter(o.w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PREFIX\tPERIOD\tLAST_VALUE\tUPDATED_AT")
	for _, sc := range list {
		updated := "-"
		if !sc.UpdatedAt.IsZero() {
			updated = sc.UpdatedAt.Format(time.RFC3339)
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", sc.Key.Prefix, sc.Key.Period, sc.LastValue, updated)
	}
	return tw.Flush()
}
