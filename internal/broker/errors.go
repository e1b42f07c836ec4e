package broker

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/kaptinlin/jsonrepair"
)

var (
	// ErrAuthenticationFailed wraps any failure to obtain a session token.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrAccountNotFound means the login has no account that is still active.
	ErrAccountNotFound = errors.New("account not found")
)

// SymbolNotFoundError means an instrument search had no exact symbol match.
type SymbolNotFoundError struct {
	Symbol string
}

func (e *SymbolNotFoundError) Error() string {
	return fmt.Sprintf("symbol '%s' not found", e.Symbol)
}

// UpstreamError is a non-2xx brokerage response. Body holds the parsed error body.
type UpstreamError struct {
	Status int
	Method string
	URL    string
	Body   json.RawMessage
}

func (e *UpstreamError) Error() string {
	if len(e.Body) == 0 {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.URL, e.Status)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.Status, string(e.Body))
}

// parseErrorBody keeps valid JSON, repairs near-JSON, and quotes anything else.
func parseErrorBody(b []byte) json.RawMessage {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 {
		return nil
	}
	if json.Valid(trimmed) {
		return json.RawMessage(trimmed)
	}
	if repaired, err := jsonrepair.JSONRepair(string(trimmed)); err == nil && json.Valid([]byte(repaired)) {
		return json.RawMessage(repaired)
	}
	quoted, _ := json.Marshal(string(trimmed))
	return quoted
}
