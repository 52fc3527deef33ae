package main

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/shopspring/decimal"

	appintegration "github.com/erp/catalogsync/internal/application/integration"
	"github.com/erp/catalogsync/internal/domain/integration"
)

// summaryLine renders the one-line run summary
func summaryLine(s *appintegration.RunSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: %s count=%d", s.Flow, s.Summary, s.Count)
	for _, action := range integration.AllAuditActions {
		if n := s.Counts[action]; n > 0 {
			fmt.Fprintf(&b, " %s=%d", action, n)
		}
	}
	if s.DryRun {
		b.WriteString(" dryrun=true")
	}
	if s.RequestID != "" {
		fmt.Fprintf(&b, " requestId=%s", s.RequestID)
	}
	return b.String()
}

func lockedLine(flow integration.Flow) string {
	return fmt.Sprintf("%s: %s (another run holds the lock)", flow, appintegration.SummaryLocked)
}

func resolutionLine(r integration.Resolution) string {
	if !r.OK {
		return fmt.Sprintf("%s: not found (%s)", r.SKU, r.Reason)
	}
	return fmt.Sprintf("%s: %d (%s)", r.SKU, r.ID, r.Source)
}

func printRuns(w io.Writer, runs []integration.AuditBatch) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "STARTED\tFLOW\tDRYRUN\tROWS\tCOUNTS\tREQUEST")
	for _, run := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%t\t%d\t%s\t%s\n",
			run.StartedAt.Format("2006-01-02 15:04:05"), run.Flow, run.DryRun, len(run.Rows), countsText(run.Counts()), run.RequestID)
	}
	_ = tw.Flush()
}

func printRows(w io.Writer, rows []integration.AuditRow) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TS\tSKU\tQTY\tPRICE\tACTION\tREASON\tDETAIL")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%s\t%s -> %s\t%s -> %s\t%s\t%s\t%s\n",
			r.Timestamp.Format("2006-01-02 15:04:05"), r.SKU,
			qtyText(r.QtyBefore), qtyText(r.QtyAfter),
			priceText(r.PriceBefore), priceText(r.PriceAfter),
			r.Action, r.Reason, r.Detail)
	}
	_ = tw.Flush()
}

func countsText(counts map[integration.AuditAction]int) string {
	parts := make([]string, 0, len(counts))
	for action, n := range counts {
		parts = append(parts, fmt.Sprintf("%s=%d", action, n))
	}
	sort.Strings(parts)
	return strings.Join(parts, ",")
}

func qtyText(q *int) string {
	if q == nil {
		return "-"
	}
	return fmt.Sprint(*q)
}

func priceText(p *decimal.Decimal) string {
	if p == nil {
		return "-"
	}
	return p.StringFixed(2)
}
