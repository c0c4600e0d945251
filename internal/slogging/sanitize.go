package slogging

import "strings"

// SanitizeLogMessage sanitizes user-controlled text before it reaches a log
// record. Newlines, carriage returns and tabs are collapsed to single spaces
// so a crafted message cannot forge additional log lines (CWE-117).
func SanitizeLogMessage(message string) string {
	message = strings.ReplaceAll(message, "\n", " ")
	message = strings.ReplaceAll(message, "\r", " ")
	message = strings.ReplaceAll(message, "\t", " ")

	return strings.TrimSpace(strings.Join(strings.Fields(message), " "))
}
