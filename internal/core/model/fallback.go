package model

import (
	"fmt"
	"regexp"
	"strings"
)

// Reason identifies why a model call produced no real answer.
type Reason string

const (
	ReasonNoOllama    Reason = "NO_OLLAMA"
	ReasonTimeout     Reason = "TIMEOUT"
	ReasonEmptyOutput Reason = "EMPTY_OUTPUT"
	ReasonError       Reason = "ERROR"
)

// Fallback tokens take one of two shapes:
//
//	[FALLBACK:TIMEOUT] no response after 35s     (offline fallback enabled)
//	LLM_ERROR[TIMEOUT]: no response after 35s    (offline fallback disabled)
var fallbackPattern = regexp.MustCompile(`^(?:\[FALLBACK:([A-Z_]+)\]|LLM_ERROR\[([A-Z_]+)\]:)`)

// Fallback renders the token for reason.
func Fallback(reason Reason, detail string, offline bool) string {
	detail = strings.TrimSpace(detail)
	if offline {
		if detail == "" {
			return fmt.Sprintf("[FALLBACK:%s]", reason)
		}
		return fmt.Sprintf("[FALLBACK:%s] %s", reason, detail)
	}
	return fmt.Sprintf("LLM_ERROR[%s]: %s", reason, detail)
}

// ParseFallback returns the reason carried by a fallback token.
func ParseFallback(s string) (Reason, bool) {
	m := fallbackPattern.FindStringSubmatch(s)
	if m == nil {
		return "", false
	}
	if m[1] != "" {
		return Reason(m[1]), true
	}
	return Reason(m[2]), true
}

func IsFallback(s string) bool {
	_, ok := ParseFallback(s)
	return ok
}

func IsTimeout(s string) bool {
	r, ok := ParseFallback(s)
	return ok && r == ReasonTimeout
}
