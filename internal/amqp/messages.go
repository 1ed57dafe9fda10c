package amqp

import (
	"encoding/json"
	"time"

	"finanze/internal/report"
)

// RunCompletedMessage tells downstream consumers that fresh datasets are available.
type RunCompletedMessage struct {
	RunID         string         `json:"run_id"`
	Timestamp     time.Time      `json:"timestamp"`
	Source        string         `json:"source"`
	Accepted      int            `json:"accepted"`
	Rejected      int            `json:"rejected"`
	MissingSheets []string       `json:"missing_sheets,omitempty"`
	FromSnapshot  []string       `json:"from_snapshot,omitempty"`
	Rejections    []report.Count `json:"rejections"`
	Artifacts     []string       `json:"artifacts"`
}

// NewRunCompletedMessage builds the message from the run report.
func NewRunCompletedMessage(runID, source string, rep report.Report, artifacts []string) *RunCompletedMessage {
	return &RunCompletedMessage{
		RunID:         runID,
		Timestamp:     time.Now().UTC(),
		Source:        source,
		Accepted:      rep.TotalAccepted,
		Rejected:      rep.TotalRejected,
		MissingSheets: rep.MissingSheets,
		Rejections:    rep.Summary,
		Artifacts:     artifacts,
	}
}

// ToJSON converts the message to JSON bytes
func (m *RunCompletedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}
