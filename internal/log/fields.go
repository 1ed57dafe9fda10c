package log

import "sort"

// Common field names for structured logging
const (
	FieldComponent  = "component"
	FieldRunID      = "run_id"
	FieldSheet      = "sheet"
	FieldKind       = "kind"
	FieldReason     = "reason"
	FieldCount      = "count"
	FieldAccepted   = "accepted"
	FieldRejected   = "rejected"
	FieldExcluded   = "excluded"
	FieldRemapped   = "remapped"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldErrorType  = "error_type"
	FieldOperation  = "operation"
	FieldSource     = "source"
	FieldArtifact   = "artifact"
	FieldSnapshotAt = "snapshot_saved_at"
)

// Components defines standard component names
const (
	ComponentApp      = "app"
	ComponentPipeline = "pipeline"
	ComponentExtract  = "extract"
	ComponentReport   = "report"
	ComponentOutput   = "output"
	ComponentStorage  = "storage"
	ComponentAMQP     = "amqp"
	ComponentSheets   = "sheets"
	ComponentBackend  = "backend"
)

// Operations defines standard operation names
const (
	OpRead      = "read"
	OpExtract   = "extract"
	OpAggregate = "aggregate"
	OpPublish   = "publish"
	OpSnapshot  = "snapshot"
	OpNotify    = "notify"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// ErrorTypes defines standard error type categories
const (
	ErrorTypeValidation    = "validation_error"
	ErrorTypeConfiguration = "configuration_error"
	ErrorTypeDatabase      = "database_error"
	ErrorTypeNetwork       = "network_error"
	ErrorTypeNotFound      = "not_found_error"
	ErrorTypeInternal      = "internal_error"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithRunID adds run ID field
func (f LogFields) WithRunID(id string) LogFields {
	f[FieldRunID] = id
	return f
}

// WithSheet adds sheet and kind fields
func (f LogFields) WithSheet(sheet, kind string) LogFields {
	f[FieldSheet] = sheet
	f[FieldKind] = kind
	return f
}

// WithError adds error fields
func (f LogFields) WithError(err error, errorType string) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
		f[FieldErrorType] = errorType
	}
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithCounts adds extraction counters
func (f LogFields) WithCounts(accepted, rejected, excluded int) LogFields {
	f[FieldAccepted] = accepted
	f[FieldRejected] = rejected
	f[FieldExcluded] = excluded
	return f
}

// ToSlice converts LogFields to a key-sorted slice for slog
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
