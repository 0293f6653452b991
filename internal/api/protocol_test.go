package api

import (
	"encoding/json"
	"testing"
)

func TestRunRequestWireNames(t *testing.T) {
	req := RunRequest{
		Model:         "fast",
		Specialist:    "grammar",
		Langs:         []string{"en", "es"},
		SelectedTopic: "Ordering food",
	}

	data, err := json.Marshal(req)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}

	if raw["selected_topic"] != "Ordering food" {
		t.Errorf("selected_topic = %v", raw["selected_topic"])
	}
	langs, ok := raw["langs"].([]any)
	if !ok || len(langs) != 2 {
		t.Errorf("langs = %v, want 2 entries", raw["langs"])
	}
}

func TestRunResponseAudios(t *testing.T) {
	j := `{"status":"success","output":"  done  ","audios":[{"file":"/out/x.flac","conversation_uuid":"u1"}]}`

	var resp RunResponse
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if len(resp.Audios) != 1 {
		t.Fatalf("audios len = %d, want 1", len(resp.Audios))
	}
	if resp.Audios[0].File != "/out/x.flac" {
		t.Errorf("file = %q", resp.Audios[0].File)
	}
	if resp.Audios[0].ConversationUUID != "u1" {
		t.Errorf("conversation_uuid = %q", resp.Audios[0].ConversationUUID)
	}
}

func TestLatestResponseWithoutAudio(t *testing.T) {
	var resp LatestResponse
	if err := json.Unmarshal([]byte(`{}`), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if resp.Audio != nil {
		t.Errorf("audio = %+v, want nil", resp.Audio)
	}
}

func TestLatestResponseTranscript(t *testing.T) {
	j := `{"audio":{"url":"/outputs/y.flac"},"transcript":[{"speaker":"Sarah","text":"Hi"},{"speaker":"Leo","text":"Hello"}]}`

	var resp LatestResponse
	if err := json.Unmarshal([]byte(j), &resp); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if resp.Audio == nil || resp.Audio.URL != "/outputs/y.flac" {
		t.Errorf("audio = %+v", resp.Audio)
	}
	if len(resp.Transcript) != 2 || resp.Transcript[1].Speaker != "Leo" {
		t.Errorf("transcript = %+v", resp.Transcript)
	}
}

func TestDetailFrom(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"detail":"Erro ao executar run_tts"}`, "Erro ao executar run_tts"},
		{`{"detail":[{"loc":["body","query_text"],"msg":"field required"}]}`, ""},
		{`{}`, ""},
		{``, ""},
	}
	for _, tt := range tests {
		if got := detailFrom([]byte(tt.body)); got != tt.want {
			t.Errorf("detailFrom(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	if err := (SuggestRequest{}).Validate(); err == nil {
		t.Error("empty subject should fail validation")
	}
	if err := (SuggestRequest{Subject: "travel"}).Validate(); err != nil {
		t.Errorf("subject set: %v", err)
	}
	if err := (RunRequest{}).Validate(); err == nil {
		t.Error("empty topic should fail validation")
	}
	if err := (QueryRequest{}).Validate(); err == nil {
		t.Error("empty query should fail validation")
	}

	err := (QueryRequest{}).Validate()
	if ve, ok := err.(*ValidationError); !ok || ve.Field != "query_text" {
		t.Errorf("err = %#v, want *ValidationError for query_text", err)
	}
}
