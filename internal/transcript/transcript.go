// Package transcript parses and renders speaker-labelled conversations.
package transcript

import (
	"regexp"
	"strings"
)

// Line is one (speaker, text) pair.
type Line struct {
	Speaker string
	Text    string
}

// Transcript is an ordered conversation.
type Transcript []Line

// speakerPrefix matches "Name: text". Names are short and contain no colon.
var speakerPrefix = regexp.MustCompile(`^([^:]{1,40}):\s*(.*)$`)

// maxNameWords bounds how many words a new speaker name may have.
const maxNameWords = 3

// Parse splits a conversation string into lines. Blank lines are skipped.
// Once two speakers are known only their names are read as prefixes, so a
// line like "It leaves at 10:30." stays text. A line without a speaker
// prefix goes to whichever of the first two speakers did not say the
// previous line.
func Parse(conversation string) Transcript {
	var out Transcript
	var speakers []string

	for _, raw := range strings.Split(strings.TrimSpace(conversation), "\n") {
		ln := strings.TrimSpace(raw)
		if ln == "" {
			continue
		}
		if speaker, text, ok := splitSpeaker(ln, speakers); ok {
			if !contains(speakers, speaker) {
				speakers = append(speakers, speaker)
			}
			out = append(out, Line{Speaker: speaker, Text: text})
			continue
		}
		out = append(out, Line{Speaker: nextSpeaker(out, speakers), Text: ln})
	}
	return out
}

// splitSpeaker reads a "Name: text" line. A known speaker is always
// accepted; a new one only while fewer than two are known and only if it
// looks like a name.
func splitSpeaker(ln string, speakers []string) (speaker, text string, ok bool) {
	m := speakerPrefix.FindStringSubmatch(ln)
	if m == nil || strings.HasPrefix(m[2], "//") {
		return "", "", false
	}
	speaker = strings.TrimSpace(m[1])
	switch {
	case contains(speakers, speaker):
	case len(speakers) < 2 && isName(speaker):
	default:
		return "", "", false
	}
	return speaker, strings.TrimSpace(m[2]), true
}

func isName(s string) bool {
	if s == "" || len(strings.Fields(s)) > maxNameWords {
		return false
	}
	return !strings.ContainsAny(s, "0123456789")
}

// nextSpeaker picks the speaker that did not say the previous line.
func nextSpeaker(prev Transcript, speakers []string) string {
	switch len(speakers) {
	case 0:
		return ""
	case 1:
		return speakers[0]
	}
	if len(prev) > 0 && prev[len(prev)-1].Speaker == speakers[0] {
		return speakers[1]
	}
	return speakers[0]
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// Render formats each line as "speaker: text".
func (t Transcript) Render() []string {
	lines := make([]string, 0, len(t))
	for _, l := range t {
		if l.Speaker == "" {
			lines = append(lines, l.Text)
			continue
		}
		lines = append(lines, l.Speaker+": "+l.Text)
	}
	return lines
}

// String joins the rendered lines with newlines.
func (t Transcript) String() string {
	return strings.Join(t.Render(), "\n")
}
