package types

import "fmt"

// WarningKind tags why a record or aggregate did not come through cleanly.
type WarningKind string

const (
	// WarnFieldDefaulted: a numeric or enum field could not be coerced and was defaulted.
	WarnFieldDefaulted WarningKind = "FIELD_DEFAULTED"
	// WarnTimeDefaulted: no timestamp layout matched; the record was stamped with "now".
	WarnTimeDefaulted WarningKind = "TIME_DEFAULTED"
	// WarnRecordDropped: the record has no resolvable instrument or side and was excluded.
	WarnRecordDropped WarningKind = "RECORD_DROPPED"
	// WarnAggregateSkipped: a consolidated row had a zero quantity divisor and was left out.
	WarnAggregateSkipped WarningKind = "AGGREGATE_SKIPPED"
)

// Warning is a non-fatal outcome collected along the pipeline. Index is the
// record's position in the raw batch, or -1 for aggregate warnings.
type Warning struct {
	Kind    WarningKind `json:"kind"`
	Index   int         `json:"index"`
	Record  string      `json:"record"`
	Field   string      `json:"field,omitempty"`
	Message string      `json:"message"`
}

func (w Warning) String() string {
	if w.Field != "" {
		return fmt.Sprintf("%s record #%d (%s) field %s: %s", w.Kind, w.Index, w.Record, w.Field, w.Message)
	}
	return fmt.Sprintf("%s record #%d (%s): %s", w.Kind, w.Index, w.Record, w.Message)
}
