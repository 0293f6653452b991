package api

import (
	"fmt"
	"path"
	"strings"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/transcript"
)

// AudioSource tells which branch of the resolution policy produced a URL.
type AudioSource string

const (
	SourceInline AudioSource = "inline"
	SourceLatest AudioSource = "latest"
)

// AudioResolution is a playable URL plus whatever transcript came with it.
type AudioResolution struct {
	URL              string
	Format           string
	Source           AudioSource
	ConversationUUID string
	Transcript       transcript.Transcript
}

// ResolveAudio finds the audio for a run response under ticket t.
//
// The first inline audio descriptor wins and its conversation is fetched
// for the transcript. Without inline audio the latest generation is asked
// for its URL and structured transcript. ErrAudioNotFound means neither
// branch produced a URL.
func (c *Client) ResolveAudio(t Ticket, run RunResponse) (AudioResolution, error) {
	log := logging.WithComponent("resolve")

	if len(run.Audios) > 0 {
		first := run.Audios[0]
		if first.File != "" {
			res := AudioResolution{
				URL:              c.OutputURL(first.File),
				Format:           FormatOf(first.File),
				Source:           SourceInline,
				ConversationUUID: first.ConversationUUID,
			}
			if first.ConversationUUID != "" {
				conv, err := c.GetConversation(t, first.ConversationUUID)
				if IsCancelled(err) {
					return AudioResolution{}, err
				}
				if err != nil {
					log.Warn("conversation lookup failed", "conversation_uuid", first.ConversationUUID, "error", err)
				} else {
					res.Transcript = transcript.Parse(conv.Conversation)
				}
			}
			return res, nil
		}
	}

	latest, err := c.LatestTTS(t)
	if IsCancelled(err) {
		return AudioResolution{}, err
	}
	if err != nil {
		return AudioResolution{}, fmt.Errorf("%w: latest generation: %v", ErrAudioNotFound, err)
	}
	if latest.Audio == nil || latest.Audio.URL == "" {
		return AudioResolution{}, ErrAudioNotFound
	}

	res := AudioResolution{
		URL:    c.ResolveURL(latest.Audio.URL),
		Format: FormatOf(latest.Audio.URL),
		Source: SourceLatest,
	}
	for _, e := range latest.Transcript {
		res.Transcript = append(res.Transcript, transcript.Line{Speaker: e.Speaker, Text: e.Text})
	}
	return res, nil
}

// FormatOf returns the lower-case file extension without the dot.
func FormatOf(file string) string {
	if i := strings.IndexAny(file, "?#"); i >= 0 {
		file = file[:i]
	}
	return strings.TrimPrefix(strings.ToLower(path.Ext(file)), ".")
}
