package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"text/tabwriter"
	"time"

	apiclient "github.com/donaldgifford/buybox/internal/api/client"
	domain "github.com/donaldgifford/buybox/pkg/types"
)

const timeLayout = "2006-01-02 15:04:05"

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

func printResult(w io.Writer, r *domain.Result) error {
	tw := newTabWriter(w)
	tw.writef("Product:\t%s\n", r.ProductID)
	tw.writef("Winner:\t%s\n", r.WinnerOfferID)
	tw.writef("Score:\t%.2f\n", r.WinnerScore)
	tw.writef("Source:\t%s\n", r.Source)
	tw.writef("Calculated:\t%s\n", r.CalculatedAt.Format(timeLayout))
	if r.CacheExpiresAt != nil {
		tw.writef("Cache Expires:\t%s\n", r.CacheExpiresAt.Format(timeLayout))
	}
	if err := tw.finish(); err != nil {
		return err
	}
	if len(r.AllScores) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w); err != nil {
		return err
	}
	return printScoresTable(w, r.AllScores)
}

func printScoresTable(w io.Writer, scores []domain.ScoreBreakdown) error {
	tw := newTabWriter(w)
	tw.writef("RANK\tOFFER\tVENDOR\tTOTAL\tPRICE\tRATING\tDELIVERY\tCANCEL\tSTOCK\n")
	for i := range scores {
		s := &scores[i]
		tw.writef("%d\t%s\t%s\t%.2f\t%.1f\t%.1f\t%.1f\t%.1f\t%.1f\n",
			i+1,
			s.OfferID,
			s.VendorID,
			s.TotalScore,
			s.PriceScore,
			s.VendorRatingScore,
			s.DeliverySLAScore,
			s.CancellationScore,
			s.StockScore,
		)
	}
	return tw.finish()
}

func printBatchTable(w io.Writer, b *apiclient.BatchResult) error {
	ids := make([]string, 0, len(b.Results))
	for id := range b.Results {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	tw := newTabWriter(w)
	tw.writef("PRODUCT\tWINNER\tSCORE\tSOURCE\tERROR\n")
	for _, id := range ids {
		r := b.Results[id]
		if r == nil {
			tw.writef("%s\t-\t-\t-\t%s\n", id, valueOrDash(truncate(b.Errors[id], 40)))
			continue
		}
		tw.writef("%s\t%s\t%.2f\t%s\t-\n", id, r.WinnerOfferID, r.WinnerScore, r.Source)
	}
	return tw.finish()
}

func printOverride(w io.Writer, o *domain.Override) error {
	tw := newTabWriter(w)
	tw.writef("Product:\t%s\n", o.ProductID)
	tw.writef("Offer:\t%s\n", o.OfferID)
	tw.writef("Vendor:\t%s\n", valueOrDash(o.VendorID))
	tw.writef("Reason:\t%s\n", valueOrDash(o.Reason))
	tw.writef("Set By:\t%s\n", valueOrDash(o.SetBy))
	tw.writef("Set At:\t%s\n", o.SetAt.Format(timeLayout))
	tw.writef("Expires:\t%s\n", formatExpiry(o.ExpiresAt))
	return tw.finish()
}

func formatExpiry(t *time.Time) string {
	if t == nil {
		return "never"
	}
	return t.Format(timeLayout)
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func valueOrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
