package app

import (
	"github.com/vinicius00franco/tts-sst-idiomas/internal/api"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/db"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/transcript"
)

// SuggestResultMsg carries the response to a topic suggestion.
type SuggestResultMsg struct {
	Ticket api.Ticket
	Topics []string
	Err    error
}

// RunResultMsg carries the response to a generation run. The ticket stays
// open so audio resolution can reuse it.
type RunResultMsg struct {
	Ticket   api.Ticket
	Request  api.RunRequest
	Response api.RunResponse
	Err      error
}

// AudioResolvedMsg carries the outcome of the audio resolution policy.
type AudioResolvedMsg struct {
	Ticket     api.Ticket
	Request    api.RunRequest
	Output     string
	Resolution api.AudioResolution
	Err        error
}

// AudioLoadedMsg reports that a session's player finished loading.
type AudioLoadedMsg struct {
	SessionID uint64
	Err       error
}

// AudioEndedMsg reports that a playback run reached its end.
type AudioEndedMsg struct {
	SessionID uint64
	Run       uint64
}

// QueryResultMsg carries the response to a vector-store query.
type QueryResultMsg struct {
	Ticket api.Ticket
	Text   string
	Data   string
	Err    error
}

// queryTickMsg fires a deferred throttled query.
type queryTickMsg struct {
	Gen uint64
}

// HistoryLoadedMsg carries recent runs loaded from SQLite.
type HistoryLoadedMsg struct {
	Runs []db.Run
	Err  error
}

// HistoryOpenedMsg carries a stored run and its transcript.
type HistoryOpenedMsg struct {
	Run        db.Run
	Transcript transcript.Transcript
	Err        error
}

// RunSavedMsg reports that a run was written to history.
type RunSavedMsg struct {
	Err error
}

// QuerySavedMsg reports that a query was written to history.
type QuerySavedMsg struct {
	Err error
}

// ClearTransientErrorMsg clears a transient error after a timeout.
type ClearTransientErrorMsg struct{}
