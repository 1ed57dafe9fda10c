package google

import (
	"strings"

	gsheet "google.golang.org/api/sheets/v4"
)

func sheetTitles(s *gsheet.Spreadsheet) []string {
	if s == nil {
		return []string{}
	}
	out := make([]string, 0, len(s.Sheets))
	for _, sh := range s.Sheets {
		if sh == nil || sh.Properties == nil {
			continue
		}
		out = append(out, sh.Properties.Title)
	}
	return out
}

// quoteSheetRange turns a sheet title into an A1 range covering the whole sheet.
// Titles are always quoted so spaces and digits need no special casing.
func quoteSheetRange(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// toValues copies the API matrix. Trailing empty cells are trimmed by the API,
// so rows may be shorter than the header.
func toValues(in [][]interface{}) [][]any {
	out := make([][]any, 0, len(in))
	for _, row := range in {
		r := make([]any, len(row))
		for i, v := range row {
			if s, ok := v.(string); ok {
				r[i] = strings.TrimSpace(s)
				continue
			}
			r[i] = v
		}
		out = append(out, r)
	}
	return out
}
