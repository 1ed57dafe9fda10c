package core

const (
	ReasonMalformedDate    RejectionReason = "malformed_date"
	ReasonUnparsableAmount RejectionReason = "unparsable_amount"
	ReasonUnknownCategory  RejectionReason = "unknown_category"
	ReasonMissingField     RejectionReason = "missing_field"
)

type RejectionReason string

// RejectionEntry records a source row that failed validation.
type RejectionEntry struct {
	Sheet     string          `json:"sheet"`
	Row       int             `json:"row"` // 1-based spreadsheet row, header is row 1
	RawValues []any           `json:"raw_values"`
	Reason    RejectionReason `json:"reason"`
	Field     string          `json:"field"`
	Detail    string          `json:"detail,omitempty"`
}
