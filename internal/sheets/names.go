package sheets

import "strings"

func equalName(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

// CloneValues deep-copies a cell matrix so callers cannot alias a source's storage.
func CloneValues(values [][]any) [][]any {
	if values == nil {
		return nil
	}
	out := make([][]any, len(values))
	for i, row := range values {
		out[i] = append([]any(nil), row...)
	}
	return out
}
