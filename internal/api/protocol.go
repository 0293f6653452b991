// Package api provides the HTTP gateway, request/response types and typed
// client for the TTS-SST backend under /api/v1.
package api

// SuggestRequest is sent to POST /suggest-topics.
type SuggestRequest struct {
	Model      string `json:"model"`
	Specialist string `json:"specialist"`
	Lang       string `json:"lang"`
	Subject    string `json:"subject"`
}

// SuggestResponse is returned by /suggest-topics.
type SuggestResponse struct {
	Topics []string `json:"topics"`
}

// RunRequest is sent to POST /run-tts.
type RunRequest struct {
	Model         string   `json:"model"`
	Specialist    string   `json:"specialist"`
	Langs         []string `json:"langs"`
	SelectedTopic string   `json:"selected_topic"`
}

// RunResponse is returned by /run-tts.
type RunResponse struct {
	Status string       `json:"status,omitempty"`
	Output string       `json:"output"`
	Audios []AudioEntry `json:"audios,omitempty"`
}

// AudioEntry describes one generated audio file.
type AudioEntry struct {
	File             string `json:"file"`
	ConversationUUID string `json:"conversation_uuid,omitempty"`
}

// ConversationRequest is sent to POST /get-conversation.
type ConversationRequest struct {
	ConversationUUID string `json:"conversation_uuid"`
}

// ConversationResponse is returned by /get-conversation.
type ConversationResponse struct {
	Conversation string `json:"conversation"`
}

// LatestResponse is returned by GET /latest-tts.
type LatestResponse struct {
	Audio      *LatestAudio      `json:"audio,omitempty"`
	Transcript []TranscriptEntry `json:"transcript,omitempty"`
}

// LatestAudio points at the most recent generated file.
type LatestAudio struct {
	URL string `json:"url"`
}

// TranscriptEntry is one structured transcript line.
type TranscriptEntry struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// QueryRequest is sent to POST /query-qdrant.
type QueryRequest struct {
	QueryText string `json:"query_text"`
}

// QueryResponse is returned by /query-qdrant.
type QueryResponse struct {
	Status string `json:"status,omitempty"`
	Data   string `json:"data"`
}

// errorBody is the FastAPI error envelope. Detail is a string for
// HTTPException and a list for request validation failures.
type errorBody struct {
	Detail any `json:"detail"`
}
