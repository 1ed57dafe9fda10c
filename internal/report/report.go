// Package report accounts for every row a run dropped and why.
package report

import (
	"encoding/json"
	"io"
	"sort"

	"finanze/internal/core"
	"finanze/internal/extract"
)

// Key groups rejections by sheet and reason.
type Key struct {
	Sheet  string
	Reason core.RejectionReason
}

// Count is one row of the summary table.
type Count struct {
	Sheet  string               `json:"sheet"`
	Reason core.RejectionReason `json:"reason"`
	Count  int                  `json:"count"`
}

type SheetStats struct {
	Sheet    string         `json:"sheet"`
	Kind     core.Kind      `json:"kind"`
	Accepted int            `json:"accepted"`
	Rejected int            `json:"rejected"`
	Excluded int            `json:"excluded"`
	Remapped map[string]int `json:"remapped_categories"`
}

type Report struct {
	TotalAccepted int                   `json:"total_accepted"`
	TotalRejected int                   `json:"total_rejected"`
	Sheets        []SheetStats          `json:"sheets"`
	MissingSheets []string              `json:"missing_sheets"`
	Summary       []Count               `json:"summary"`
	Rejections    []core.RejectionEntry `json:"rejections"`
}

// Summarize counts rejections per (sheet, reason).
func Summarize(rejections []core.RejectionEntry) map[Key]int {
	out := map[Key]int{}
	for _, r := range rejections {
		out[Key{Sheet: r.Sheet, Reason: r.Reason}]++
	}
	return out
}

// SortedCounts flattens a summary ordered by sheet then reason.
func SortedCounts(m map[Key]int) []Count {
	out := make([]Count, 0, len(m))
	for k, n := range m {
		out = append(out, Count{Sheet: k.Sheet, Reason: k.Reason, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Sheet != out[j].Sheet {
			return out[i].Sheet < out[j].Sheet
		}
		return out[i].Reason < out[j].Reason
	})
	return out
}

// Build assembles the report from per-sheet results in the given order.
// Sheets listed in missing produced no result.
func Build(results []extract.Result, missing []string) Report {
	r := Report{
		Sheets:        make([]SheetStats, 0, len(results)),
		MissingSheets: append([]string{}, missing...),
		Rejections:    []core.RejectionEntry{},
	}
	for _, res := range results {
		remapped := make(map[string]int, len(res.Remapped))
		for k, v := range res.Remapped {
			remapped[k] = v
		}
		r.Sheets = append(r.Sheets, SheetStats{
			Sheet:    res.Sheet,
			Kind:     res.Kind,
			Accepted: len(res.Transactions),
			Rejected: len(res.Rejections),
			Excluded: res.Excluded,
			Remapped: remapped,
		})
		r.TotalAccepted += len(res.Transactions)
		r.TotalRejected += len(res.Rejections)
		r.Rejections = append(r.Rejections, res.Rejections...)
	}
	r.Summary = SortedCounts(Summarize(r.Rejections))
	return r
}

// WriteJSON encodes the report. Output is stable for identical input.
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(r)
}
