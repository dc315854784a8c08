package model

import "strings"

// ReasoningEndMarker is printed by reasoning models once their thinking block ends.
// Only the text after its last occurrence is the answer.
const ReasoningEndMarker = "...done thinking."

// StripReasoning removes any thinking preamble and trims the answer.
func StripReasoning(out string) string {
	if i := strings.LastIndex(out, ReasoningEndMarker); i >= 0 {
		out = out[i+len(ReasoningEndMarker):]
	}
	return strings.TrimSpace(out)
}
