package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/audio"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/config"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/ui"
)

// View renders the full TUI.
func (m Model) View() string {
	if m.width == 0 {
		return "Initializing..."
	}

	divider := ui.DividerStyle.Render(strings.Repeat("─", m.width))

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, m.renderChoices())
	sections = append(sections, divider)
	sections = append(sections, m.renderSuggest())
	sections = append(sections, divider)
	sections = append(sections, m.renderRun())
	sections = append(sections, divider)
	sections = append(sections, m.renderQuery())
	if m.store != nil {
		sections = append(sections, divider)
		sections = append(sections, m.renderHistory())
	}
	sections = append(sections, divider)

	if m.errorMessage != "" {
		sections = append(sections, m.renderErrorBar())
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	title := ui.TitleStyle.Render("TTSDESK")
	var origin string
	if m.client != nil {
		origin = ui.DimStyle.Render(" · " + m.client.BaseURL())
	}
	var busy string
	if m.busy() {
		busy = "  " + m.spinner.View()
	}
	return title + origin + busy
}

func (m Model) renderChoices() string {
	langs := make([]string, 0, len(config.Languages))
	for _, l := range config.Languages {
		box := "[ ]"
		if m.langs[l] {
			box = "[x]"
		}
		langs = append(langs, box+" "+l)
	}
	return fmt.Sprintf("%s %s  %s %s  %s %s  %s %s",
		ui.DimStyle.Render("model"), ui.ChoiceStyle.Render(m.modelName()),
		ui.DimStyle.Render("specialist"), ui.ChoiceStyle.Render(m.specialistName()),
		ui.DimStyle.Render("lang"), ui.ChoiceStyle.Render(m.langName()),
		ui.DimStyle.Render("langs"), strings.Join(langs, " "))
}

func (m Model) panelTitle(title string, focused bool) string {
	if focused {
		return ui.PanelTitleActiveStyle.Render(title)
	}
	return ui.PanelTitleStyle.Render(title)
}

func (m Model) renderSuggest() string {
	lines := []string{
		m.panelTitle("SUGGEST TOPICS", m.focus == FocusSubject || m.focus == FocusTopics),
		"  " + m.subject.View(),
	}
	if s := renderStatus(m.suggestStatus); s != "" {
		lines = append(lines, "  "+s)
	}
	for i, t := range m.topics {
		line := "  " + truncateToWidth(t, max(10, m.width-6))
		if i == m.selectedTopic && m.focus == FocusTopics {
			line = ui.SelectedStyle.Render("> " + truncateToWidth(t, max(10, m.width-6)))
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderRun() string {
	lines := []string{
		m.panelTitle("GENERATE", m.focus == FocusTopic),
		"  " + m.topic.View(),
	}
	if s := renderStatus(m.runStatus); s != "" {
		lines = append(lines, "  "+s)
	}
	for _, wl := range wrapText(m.runOutput, max(10, m.width-4)) {
		if wl != "" {
			lines = append(lines, "  "+wl)
		}
	}

	lines = append(lines, "")
	lines = append(lines, m.panelTitle("AUDIO", m.focus == FocusAudio)+"  "+m.renderAudioStatus())
	lines = append(lines, "  "+m.renderControls())

	for _, l := range m.transcript {
		text := wrapText(l.Text, max(10, m.width-len(l.Speaker)-6))
		if l.Speaker == "" {
			lines = append(lines, "  "+text[0])
		} else {
			lines = append(lines, "  "+ui.SpeakerStyle.Render(l.Speaker+":")+" "+text[0])
		}
		for _, wl := range text[1:] {
			lines = append(lines, "    "+wl)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderAudioStatus() string {
	if m.session == nil {
		return ui.DimStyle.Render("No audio")
	}
	switch m.session.State() {
	case audio.Failed:
		return ui.StatusErrorStyle.Render(m.session.Status())
	case audio.Playing:
		return ui.PlayingBadgeStyle.Render("▶ " + m.session.Status())
	}
	return ui.StatusStyle.Render(m.session.Status())
}

func (m Model) renderControls() string {
	var c audio.Controls
	if m.session != nil {
		c = m.session.Controls()
	}
	control := func(key, label string, on bool) string {
		if on {
			return ui.ControlOnStyle.Render("["+key+"] ") + label
		}
		return ui.ControlOffStyle.Render("[" + key + "] " + label)
	}
	return strings.Join([]string{
		control("p", "Play", c.Play),
		control("space", "Pause", c.Pause),
		control("s", "Stop", c.Stop),
	}, "  ")
}

func (m Model) renderQuery() string {
	lines := []string{
		m.panelTitle("QUERY", m.focus == FocusQuery),
		"  " + m.query.View(),
	}
	if s := renderStatus(m.queryStatus); s != "" {
		lines = append(lines, "  "+s)
	}
	for _, wl := range wrapText(m.queryOutput, max(10, m.width-4)) {
		if wl != "" {
			lines = append(lines, "  "+wl)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderHistory() string {
	lines := []string{m.panelTitle(fmt.Sprintf("HISTORY (%d)", len(m.history)), m.focus == FocusHistory)}
	if len(m.history) == 0 {
		lines = append(lines, ui.DimStyle.Render("  No runs yet..."))
	}
	for i, r := range m.history {
		ts := ui.TimestampStyle.Render(r.CreatedAt.Format("[01-02 15:04]"))
		line := truncateToWidth(r.Topic, max(10, m.width-20))
		if i == m.selectedHistory && m.focus == FocusHistory {
			lines = append(lines, ui.SelectedStyle.Render("> ")+ts+" "+ui.SelectedStyle.Render(line))
			continue
		}
		lines = append(lines, "  "+ts+" "+line)
	}
	return strings.Join(lines, "\n")
}

func renderStatus(s status) string {
	switch s.kind {
	case statusOK:
		return ui.StatusOKStyle.Render(s.text)
	case statusError:
		return ui.StatusErrorStyle.Render(s.text)
	}
	return ui.StatusStyle.Render(s.text)
}

func (m Model) renderErrorBar() string {
	return ui.ErrorStyle.Render("Error: ") + ui.ErrorTextStyle.Render(m.errorMessage)
}

func (m Model) renderFooter() string {
	key := func(k, desc string) string {
		return ui.FooterKeyStyle.Render(k) + ui.FooterDescStyle.Render(" "+desc)
	}

	parts := []string{
		key("Tab", "Focus"),
		key("Enter", "Submit"),
		key("F2", "Model"),
		key("F3", "Specialist"),
		key("F4", "Lang"),
		key("F5-F7", "Langs"),
	}
	switch m.focus {
	case FocusTopics, FocusHistory:
		parts = append(parts, key("j/k", "Nav"), key("q", "Quit"))
	case FocusAudio:
		parts = append(parts, key("p/space/s", "Play/Pause/Stop"), key("q", "Quit"))
	default:
		parts = append(parts, key("Ctrl+C", "Quit"))
	}
	return strings.Join(parts, "  ")
}

// Helpers

func truncateToWidth(s string, width int) string {
	visible := lipgloss.Width(s)
	if visible <= width {
		return s
	}
	runes := []rune(s)
	if len(runes) > width-1 {
		return string(runes[:width-1]) + "…"
	}
	return s
}

func wrapText(text string, width int) []string {
	if width <= 0 {
		return []string{text}
	}

	var lines []string
	for _, paragraph := range strings.Split(text, "\n") {
		var current string
		for _, word := range strings.Fields(paragraph) {
			if current == "" {
				current = word
			} else if len(current)+1+len(word) <= width {
				current += " " + word
			} else {
				lines = append(lines, current)
				current = word
			}
		}
		if current != "" {
			lines = append(lines, current)
		} else {
			lines = append(lines, "")
		}
	}
	if len(lines) == 0 {
		return []string{""}
	}
	return lines
}
