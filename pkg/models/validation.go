package models

import "strings"

// Severity classifies a validator message.
type Severity string

const (
	SeverityError Severity = "ERROR"
	SeverityWarn  Severity = "WARN"
	SeverityInfo  Severity = "INFO"
)

// ValidationReport is the outcome of one validator pass over an uploaded
// archive. Info messages carry their severity as a "LEVEL: " prefix so a
// single ordered stream preserves interleaving; explicit error and warning
// lists hold messages that are unambiguous on their own.
type ValidationReport struct {
	InfoMsgs    []string `json:"info_msgs,omitempty"`
	ErrorMsgs   []string `json:"error_msgs,omitempty"`
	WarningMsgs []string `json:"warning_msgs,omitempty"`
}

// AddInfo appends a severity-tagged info message.
func (r *ValidationReport) AddInfo(level Severity, msg string) {
	r.InfoMsgs = append(r.InfoMsgs, string(level)+": "+msg)
}

// AddError appends to the explicit error list.
func (r *ValidationReport) AddError(msg string) {
	r.ErrorMsgs = append(r.ErrorMsgs, msg)
}

// AddWarning appends to the explicit warning list.
func (r *ValidationReport) AddWarning(msg string) {
	r.WarningMsgs = append(r.WarningMsgs, msg)
}

// HasErrors reports whether the validator found anything fatal.
func (r *ValidationReport) HasErrors() bool {
	if len(r.ErrorMsgs) > 0 {
		return true
	}

	for _, msg := range r.InfoMsgs {
		if InfoLevel(msg) == SeverityError {
			return true
		}
	}

	return false
}

// InfoLevel extracts the severity prefix of an info message. Untagged
// messages default to INFO.
func InfoLevel(msg string) Severity {
	switch {
	case strings.HasPrefix(msg, string(SeverityError)+": "):
		return SeverityError
	case strings.HasPrefix(msg, string(SeverityWarn)+": "):
		return SeverityWarn
	default:
		return SeverityInfo
	}
}

// InfoMessage strips the severity prefix of an info message.
func InfoMessage(msg string) string {
	level := InfoLevel(msg)
	if level == SeverityInfo {
		return strings.TrimPrefix(msg, string(SeverityInfo)+": ")
	}

	return strings.TrimPrefix(msg, string(level)+": ")
}
