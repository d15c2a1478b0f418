package project

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/ImpactInc/azkaban/pkg/models"
)

// maxReportChars bounds the aggregated message handed back to clients.
const maxReportChars = 4000

// aggregateErrors collects every error-severity message across the reports
// into one newline-joined string, truncated to maxReportChars. Empty when no
// report carries errors.
func aggregateErrors(reports map[string]*models.ValidationReport) string {
	var messages []string

	for _, name := range sortedReportNames(reports) {
		report := reports[name]

		for _, msg := range report.InfoMsgs {
			if models.InfoLevel(msg) == models.SeverityError {
				messages = append(messages, models.InfoMessage(msg))
			}
		}

		messages = append(messages, report.ErrorMsgs...)
	}

	return truncate(strings.Join(messages, "\n"))
}

// aggregateWarnings collects warning-severity messages the same way.
func aggregateWarnings(reports map[string]*models.ValidationReport) string {
	var messages []string

	for _, name := range sortedReportNames(reports) {
		report := reports[name]

		for _, msg := range report.InfoMsgs {
			if models.InfoLevel(msg) == models.SeverityWarn {
				messages = append(messages, models.InfoMessage(msg))
			}
		}

		messages = append(messages, report.WarningMsgs...)
	}

	return truncate(strings.Join(messages, "\n"))
}

func sortedReportNames(reports map[string]*models.ValidationReport) []string {
	names := make([]string, 0, len(reports))
	for name := range reports {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// truncate bounds the message to maxReportChars bytes without splitting a
// multi-byte rune at the cut.
func truncate(message string) string {
	if len(message) <= maxReportChars {
		return message
	}

	cut := maxReportChars
	for cut > 0 && !utf8.RuneStart(message[cut]) {
		cut--
	}

	return message[:cut]
}
