package api

import (
	"errors"
	"fmt"
)

// ErrCancelled is returned for a request that was superseded by a newer one
// in the same slot. Callers drop it without touching the view.
var ErrCancelled = errors.New("request superseded")

// ErrAudioNotFound is returned when neither the run response nor the latest
// generation yields a playable URL.
var ErrAudioNotFound = errors.New("audio not found")

// APIError is a non-success HTTP response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return e.Message
}

// ValidationError is a missing required field, reported before any network call.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// Validate checks that the subject is present.
func (r SuggestRequest) Validate() error {
	if r.Subject == "" {
		return &ValidationError{Field: "subject", Message: "subject is required"}
	}
	return nil
}

// Validate checks that a topic was selected.
func (r RunRequest) Validate() error {
	if r.SelectedTopic == "" {
		return &ValidationError{Field: "selected_topic", Message: "select a topic"}
	}
	return nil
}

// Validate checks that the query text is present.
func (r QueryRequest) Validate() error {
	if r.QueryText == "" {
		return &ValidationError{Field: "query_text", Message: "query text is required"}
	}
	return nil
}

// Validate checks that the conversation id is present.
func (r ConversationRequest) Validate() error {
	if r.ConversationUUID == "" {
		return &ValidationError{Field: "conversation_uuid", Message: "conversation id is required"}
	}
	return nil
}

// IsCancelled reports whether err comes from a superseded request.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}

func statusError(code int, detail, statusText string) *APIError {
	msg := detail
	if msg == "" {
		msg = statusText
	}
	if msg == "" {
		msg = fmt.Sprintf("HTTP %d", code)
	}
	return &APIError{StatusCode: code, Message: msg}
}
