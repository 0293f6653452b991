package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/api"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/audio"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/config"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/db"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/throttle"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/transcript"
	"github.com/vinicius00franco/tts-sst-idiomas/internal/ui"

	tea "github.com/charmbracelet/bubbletea"
)

// MaxTopics is how many suggested topics are shown.
const MaxTopics = 5

// HistoryLimit is how many past runs the history panel lists.
const HistoryLimit = 10

// Focus tracks which area has keyboard focus.
type Focus int

const (
	FocusSubject Focus = iota
	FocusTopics
	FocusTopic
	FocusQuery
	FocusAudio
	FocusHistory
)

var focusOrder = []Focus{FocusSubject, FocusTopics, FocusTopic, FocusAudio, FocusQuery, FocusHistory}

// statusKind colours a status line.
type statusKind int

const (
	statusNeutral statusKind = iota
	statusOK
	statusError
)

// status is the inline status text of one form.
type status struct {
	text string
	kind statusKind
}

func infoStatus(text string) status { return status{text: text} }
func okStatus(text string) status   { return status{text: text, kind: statusOK} }
func errStatus(err error) status    { return status{text: err.Error(), kind: statusError} }

// Options wires the model to its collaborators.
type Options struct {
	Client *api.Client
	// Store is optional; history is disabled without it.
	Store *db.Store
	// NewPlayer creates the playback backend for each audio session.
	NewPlayer func() (audio.Player, error)
	Defaults  config.DefaultsConfig
	// Throttle is the query window. Zero fires every submission.
	Throttle time.Duration
	// Now is the clock used by the query throttle. Defaults to time.Now.
	Now func() time.Time
}

// Model is the root bubbletea model for the ttsdesk TUI.
type Model struct {
	client    *api.Client
	store     *db.Store
	newPlayer func() (audio.Player, error)
	ctx       context.Context
	now       func() time.Time
	logger    *slog.Logger

	// Form choices
	modelIdx      int
	specialistIdx int
	langIdx       int
	langs         map[string]bool

	// Inputs
	subject textinput.Model
	topic   textinput.Model
	query   textinput.Model

	// Suggest
	suggestTicket api.Ticket
	suggestBusy   bool
	suggestStatus status
	topics        []string
	selectedTopic int

	// Run
	runTicket  api.Ticket
	runBusy    bool
	runStatus  status
	runOutput  string
	transcript transcript.Transcript

	// Audio
	session       *audio.Session
	sessionCancel context.CancelFunc
	nextSessionID uint64

	// Query
	throttle    *throttle.Throttle[string]
	queryTicket api.Ticket
	queryBusy   bool
	queryStatus status
	queryOutput string

	// History
	history         []db.Run
	selectedHistory int

	// UI state
	focus   Focus
	width   int
	height  int
	spinner spinner.Model

	// Errors
	errorMessage   string
	errorTransient bool
}

// New creates a Model with the given collaborators.
func New(opts Options) Model {
	subject := textinput.New()
	subject.Prompt = "Subject: "
	subject.Placeholder = "e.g. travelling abroad"
	subject.CharLimit = 200
	subject.Focus()

	topic := textinput.New()
	topic.Prompt = "Topic: "
	topic.Placeholder = "pick a suggestion or type one"
	topic.CharLimit = 300

	query := textinput.New()
	query.Prompt = "Query: "
	query.Placeholder = "search the knowledge base"
	query.CharLimit = 500

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ui.SpinnerStyle

	now := opts.Now
	if now == nil {
		now = time.Now
	}

	m := Model{
		client:    opts.Client,
		store:     opts.Store,
		newPlayer: opts.NewPlayer,
		ctx:       context.Background(),
		now:       now,
		logger:    logging.WithComponent("tui"),
		langs:     make(map[string]bool),
		subject:   subject,
		topic:     topic,
		query:     query,
		throttle:  throttle.New[string](opts.Throttle),
		focus:     FocusSubject,
		spinner:   sp,
	}

	m.modelIdx = indexOf(config.Models, opts.Defaults.Model)
	m.specialistIdx = indexOf(config.Specialists, opts.Defaults.Specialist)
	m.langIdx = indexOf(config.Languages, opts.Defaults.Lang)
	for _, l := range opts.Defaults.Langs {
		m.langs[l] = true
	}
	return m
}

// Init loads history and starts the cursor and spinner.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{textinput.Blink, m.spinner.Tick}
	if m.store != nil {
		cmds = append(cmds, loadHistoryCmd(m.store))
	}
	return tea.Batch(cmds...)
}

// suggestCmd asks the backend for topics.
func suggestCmd(c *api.Client, t api.Ticket, req api.SuggestRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.SuggestTopics(t, req)
		c.Release(t)
		return SuggestResultMsg{Ticket: t, Topics: resp.Topics, Err: err}
	}
}

// runCmd starts a generation. The ticket is released after audio
// resolution, not here.
func runCmd(c *api.Client, t api.Ticket, req api.RunRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.RunTTS(t, req)
		return RunResultMsg{Ticket: t, Request: req, Response: resp, Err: err}
	}
}

// resolveAudioCmd applies the audio resolution policy to a run response.
func resolveAudioCmd(c *api.Client, t api.Ticket, req api.RunRequest, resp api.RunResponse) tea.Cmd {
	return func() tea.Msg {
		res, err := c.ResolveAudio(t, resp)
		c.Release(t)
		return AudioResolvedMsg{
			Ticket:     t,
			Request:    req,
			Output:     strings.TrimSpace(resp.Output),
			Resolution: res,
			Err:        err,
		}
	}
}

// queryCmd runs a vector-store query.
func queryCmd(c *api.Client, t api.Ticket, req api.QueryRequest) tea.Cmd {
	return func() tea.Msg {
		resp, err := c.QueryQdrant(t, req)
		c.Release(t)
		return QueryResultMsg{Ticket: t, Text: req.QueryText, Data: resp.Data, Err: err}
	}
}

// loadAudioCmd prepares a session's player off the UI loop.
func loadAudioCmd(ctx context.Context, s *audio.Session) tea.Cmd {
	return func() tea.Msg {
		return AudioLoadedMsg{SessionID: s.ID(), Err: s.Load(ctx)}
	}
}

// waitAudioEndCmd reports when a playback run finishes.
func waitAudioEndCmd(sessionID, run uint64, done <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-done
		return AudioEndedMsg{SessionID: sessionID, Run: run}
	}
}

// queryTickCmd fires a deferred query after the throttle delay.
func queryTickCmd(d time.Duration, gen uint64) tea.Cmd {
	return tea.Tick(d, func(time.Time) tea.Msg {
		return queryTickMsg{Gen: gen}
	})
}

// clearTransientErrorCmd fires after a delay to clear transient errors.
func clearTransientErrorCmd() tea.Cmd {
	return tea.Tick(5*time.Second, func(time.Time) tea.Msg {
		return ClearTransientErrorMsg{}
	})
}

// loadHistoryCmd reads recent runs from SQLite.
func loadHistoryCmd(store *db.Store) tea.Cmd {
	return func() tea.Msg {
		runs, err := store.RecentRuns(HistoryLimit)
		return HistoryLoadedMsg{Runs: runs, Err: err}
	}
}

// openHistoryCmd reads the transcript of a stored run.
func openHistoryCmd(store *db.Store, run db.Run) tea.Cmd {
	return func() tea.Msg {
		tr, err := store.TranscriptForRun(run.ID)
		return HistoryOpenedMsg{Run: run, Transcript: tr, Err: err}
	}
}

// saveRunCmd writes a finished run to history.
func saveRunCmd(store *db.Store, run db.Run, tr transcript.Transcript) tea.Cmd {
	return func() tea.Msg {
		return RunSavedMsg{Err: store.SaveRun(&run, tr)}
	}
}

// runRecord is the history row for a resolved run. AudioURL is empty when
// no audio was found.
func runRecord(msg AudioResolvedMsg) db.Run {
	return db.Run{
		Topic:      msg.Request.SelectedTopic,
		Model:      msg.Request.Model,
		Specialist: msg.Request.Specialist,
		Langs:      msg.Request.Langs,
		Output:     msg.Output,
		AudioURL:   msg.Resolution.URL,
	}
}

// saveQueryCmd writes a finished query to history.
func saveQueryCmd(store *db.Store, q db.Query) tea.Cmd {
	return func() tea.Msg {
		return QuerySavedMsg{Err: store.SaveQuery(&q)}
	}
}

// Update processes messages and returns the updated model and any commands.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.subject.Width = max(10, msg.Width-len(m.subject.Prompt)-4)
		m.topic.Width = max(10, msg.Width-len(m.topic.Prompt)-4)
		m.query.Width = max(10, msg.Width-len(m.query.Prompt)-4)
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case SuggestResultMsg:
		if !m.client.IsCurrent(msg.Ticket) || api.IsCancelled(msg.Err) {
			return m, nil
		}
		m.suggestBusy = false
		if msg.Err != nil {
			m.logger.Warn("suggest failed", "error", msg.Err)
			m.suggestStatus = errStatus(msg.Err)
			return m, nil
		}
		topics := msg.Topics
		if len(topics) > MaxTopics {
			topics = topics[:MaxTopics]
		}
		m.topics = topics
		m.selectedTopic = 0
		if len(topics) == 0 {
			m.suggestStatus = infoStatus("No topics suggested")
			return m, nil
		}
		m.suggestStatus = okStatus("OK")
		return m, nil

	case RunResultMsg:
		if !m.client.IsCurrent(msg.Ticket) || api.IsCancelled(msg.Err) {
			return m, nil
		}
		if msg.Err != nil {
			m.client.Release(msg.Ticket)
			m.runBusy = false
			m.logger.Warn("run failed", "error", msg.Err)
			m.runStatus = errStatus(msg.Err)
			return m, nil
		}
		m.runOutput = strings.TrimSpace(msg.Response.Output)
		m.runStatus = infoStatus("Resolving audio...")
		return m, resolveAudioCmd(m.client, msg.Ticket, msg.Request, msg.Response)

	case AudioResolvedMsg:
		if !m.client.IsCurrent(msg.Ticket) || api.IsCancelled(msg.Err) {
			return m, nil
		}
		m.runBusy = false
		if msg.Err != nil {
			m.logger.Info("no audio for run", "error", msg.Err)
			m.runStatus = errStatus(msg.Err)
			// The generation itself succeeded; keep it without audio.
			if m.store != nil && errors.Is(msg.Err, api.ErrAudioNotFound) {
				return m, saveRunCmd(m.store, runRecord(msg), nil)
			}
			return m, nil
		}
		m.runStatus = okStatus("OK")
		m.transcript = msg.Resolution.Transcript
		cmds := []tea.Cmd{m.openSession(msg.Resolution.URL, msg.Resolution.Format)}
		if m.store != nil {
			cmds = append(cmds, saveRunCmd(m.store, runRecord(msg), msg.Resolution.Transcript))
		}
		return m, tea.Batch(cmds...)

	case AudioLoadedMsg:
		if m.session == nil || m.session.ID() != msg.SessionID {
			return m, nil
		}
		if msg.Err != nil {
			m.logger.Warn("audio load failed", "url", m.session.URL(), "error", msg.Err)
		}
		m.session.Loaded(msg.Err)
		return m, nil

	case AudioEndedMsg:
		if m.session == nil || m.session.ID() != msg.SessionID {
			return m, nil
		}
		m.session.Finished(msg.Run)
		return m, nil

	case queryTickMsg:
		args, fire := m.throttle.Expire(m.now(), msg.Gen)
		if !fire {
			return m, nil
		}
		return m, m.executeQuery(args)

	case QueryResultMsg:
		if !m.client.IsCurrent(msg.Ticket) || api.IsCancelled(msg.Err) {
			return m, nil
		}
		m.queryBusy = false
		if msg.Err != nil {
			m.logger.Warn("query failed", "error", msg.Err)
			m.queryStatus = errStatus(msg.Err)
			return m, nil
		}
		m.queryOutput = strings.TrimSpace(msg.Data)
		m.queryStatus = okStatus("OK")
		if m.store != nil {
			return m, saveQueryCmd(m.store, db.Query{Text: msg.Text, Result: m.queryOutput})
		}
		return m, nil

	case HistoryLoadedMsg:
		if msg.Err != nil {
			m.logger.Warn("load history failed", "error", msg.Err)
			return m, nil
		}
		m.history = msg.Runs
		if m.selectedHistory >= len(m.history) {
			m.selectedHistory = max(0, len(m.history)-1)
		}
		return m, nil

	case HistoryOpenedMsg:
		if msg.Err != nil {
			m.errorMessage = fmt.Sprintf("open run: %v", msg.Err)
			m.errorTransient = true
			return m, clearTransientErrorCmd()
		}
		// A stored run takes over the audio; an in-flight generation must not
		// replace it later.
		m.client.Gateway().Cancel(api.SlotRun)
		m.runBusy = false
		m.topic.SetValue(msg.Run.Topic)
		m.runOutput = msg.Run.Output
		m.runStatus = infoStatus("From history: " + msg.Run.CreatedAt.Format("2006-01-02 15:04"))
		m.transcript = msg.Transcript
		if msg.Run.AudioURL == "" {
			m.releaseSession()
			return m, nil
		}
		return m, m.openSession(msg.Run.AudioURL, api.FormatOf(msg.Run.AudioURL))

	case RunSavedMsg:
		if msg.Err != nil {
			m.logger.Warn("save run failed", "error", msg.Err)
			return m, nil
		}
		return m, loadHistoryCmd(m.store)

	case QuerySavedMsg:
		if msg.Err != nil {
			m.logger.Warn("save query failed", "error", msg.Err)
		}
		return m, nil

	case ClearTransientErrorMsg:
		if m.errorTransient {
			m.errorMessage = ""
			m.errorTransient = false
		}
		return m, nil
	}

	return m.updateFocusedInput(msg)
}

// handleKey processes key presses.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyCtrlC:
		return m.quit()

	case KeyTab:
		return m.cycleFocus(1)

	case KeyShiftTab:
		return m.cycleFocus(-1)

	case KeyCycleModel:
		m.modelIdx = (m.modelIdx + 1) % len(config.Models)
		return m, nil

	case KeyCycleSpecialist:
		m.specialistIdx = (m.specialistIdx + 1) % len(config.Specialists)
		return m, nil

	case KeyCycleLang:
		m.langIdx = (m.langIdx + 1) % len(config.Languages)
		return m, nil

	case KeyToggleLangPT, KeyToggleLangEN, KeyToggleLangES:
		l := map[string]string{KeyToggleLangPT: "pt", KeyToggleLangEN: "en", KeyToggleLangES: "es"}[msg.String()]
		m.langs[l] = !m.langs[l]
		return m, nil

	case KeyEnter:
		return m.handleEnter()
	}

	switch m.focus {
	case FocusTopics, FocusHistory:
		switch msg.String() {
		case KeyQuit, KeyQuitUpper:
			return m.quit()
		}
		if m.focus == FocusTopics {
			m.selectedTopic = moveSelection(msg, m.selectedTopic, len(m.topics))
		} else {
			m.selectedHistory = moveSelection(msg, m.selectedHistory, len(m.history))
		}
		return m, nil
	case FocusAudio:
		return m.handleAudioKey(msg)
	}

	return m.updateFocusedInput(msg)
}

func (m Model) handleEnter() (tea.Model, tea.Cmd) {
	switch m.focus {
	case FocusSubject:
		return m, m.submitSuggest()

	case FocusTopics:
		if m.selectedTopic < len(m.topics) {
			m.topic.SetValue(m.topics[m.selectedTopic])
			return m.setFocus(FocusTopic)
		}

	case FocusTopic:
		return m, m.submitRun()

	case FocusQuery:
		return m, m.submitQuery()

	case FocusAudio:
		return m.handleAudioKey(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(KeyPlay)})

	case FocusHistory:
		if m.store != nil && m.selectedHistory < len(m.history) {
			return m, openHistoryCmd(m.store, m.history[m.selectedHistory])
		}
	}
	return m, nil
}

// moveSelection returns the list index after a navigation key.
func moveSelection(msg tea.KeyMsg, selected, n int) int {
	switch msg.String() {
	case KeyJ, KeyDown:
		if selected < n-1 {
			selected++
		}
	case KeyK, KeyUp:
		if selected > 0 {
			selected--
		}
	}
	return selected
}

func (m Model) handleAudioKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyQuitUpper:
		return m.quit()
	}
	if m.session == nil {
		return m, nil
	}

	var err error
	var cmd tea.Cmd
	switch msg.String() {
	case KeyPlay:
		var done <-chan struct{}
		done, err = m.session.Play()
		if done != nil {
			cmd = waitAudioEndCmd(m.session.ID(), m.session.Run(), done)
		}
	case KeyPause:
		err = m.session.Pause()
	case KeyStop:
		err = m.session.Stop()
	}
	if err != nil {
		m.logger.Warn("audio control failed", "key", msg.String(), "error", err)
		m.errorMessage = err.Error()
		m.errorTransient = true
		return m, tea.Batch(cmd, clearTransientErrorCmd())
	}
	return m, cmd
}

// submitSuggest validates the suggest form and starts a request.
func (m *Model) submitSuggest() tea.Cmd {
	m.topics = nil
	m.selectedTopic = 0

	req := api.SuggestRequest{
		Model:      m.modelName(),
		Specialist: m.specialistName(),
		Lang:       m.langName(),
		Subject:    strings.TrimSpace(m.subject.Value()),
	}
	if err := req.Validate(); err != nil {
		m.suggestStatus = errStatus(err)
		return nil
	}

	m.suggestTicket = m.client.Begin(m.ctx, api.SlotSuggest)
	m.suggestBusy = true
	m.suggestStatus = infoStatus("Loading...")
	return suggestCmd(m.client, m.suggestTicket, req)
}

// submitRun validates the run form, releases the current audio and starts
// a generation.
func (m *Model) submitRun() tea.Cmd {
	m.runOutput = ""

	req := api.RunRequest{
		Model:         m.modelName(),
		Specialist:    m.specialistName(),
		Langs:         m.selectedLangs(),
		SelectedTopic: strings.TrimSpace(m.topic.Value()),
	}
	if err := req.Validate(); err != nil {
		m.runStatus = errStatus(err)
		return nil
	}

	m.releaseSession()
	m.transcript = nil

	m.runTicket = m.client.Begin(m.ctx, api.SlotRun)
	m.runBusy = true
	m.runStatus = infoStatus("Generating...")
	return runCmd(m.client, m.runTicket, req)
}

// submitQuery passes the query text through the throttle.
func (m *Model) submitQuery() tea.Cmd {
	d := m.throttle.Submit(m.now(), m.query.Value())
	if d.Fire {
		return m.executeQuery(d.Args)
	}
	return queryTickCmd(d.Delay, d.Gen)
}

// executeQuery validates text and starts a query request.
func (m *Model) executeQuery(text string) tea.Cmd {
	m.queryOutput = ""

	req := api.QueryRequest{QueryText: strings.TrimSpace(text)}
	if err := req.Validate(); err != nil {
		m.queryStatus = errStatus(err)
		return nil
	}

	m.queryTicket = m.client.Begin(m.ctx, api.SlotQuery)
	m.queryBusy = true
	m.queryStatus = infoStatus("Querying...")
	return queryCmd(m.client, m.queryTicket, req)
}

// openSession replaces the audio session with one for url.
func (m *Model) openSession(url, format string) tea.Cmd {
	m.releaseSession()

	var player audio.Player
	var err error
	if m.newPlayer != nil {
		player, err = m.newPlayer()
	} else {
		err = errors.New("no audio player configured")
	}
	m.nextSessionID++
	if err != nil {
		m.logger.Warn("create player failed", "error", err)
		m.session = audio.NewFailedSession(m.nextSessionID, url, format, err)
		return nil
	}
	m.session = audio.NewSession(m.nextSessionID, url, format, player)

	ctx, cancel := context.WithCancel(m.ctx)
	m.sessionCancel = cancel
	m.logger.Debug("audio session opened", "id", m.nextSessionID, "url", url)
	return loadAudioCmd(ctx, m.session)
}

// releaseSession frees the current audio session, if any.
func (m *Model) releaseSession() {
	if m.sessionCancel != nil {
		m.sessionCancel()
		m.sessionCancel = nil
	}
	if m.session == nil {
		return
	}
	if err := m.session.Release(); err != nil {
		m.logger.Warn("release audio failed", "error", err)
	}
	m.session = nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.client.Gateway().CancelAll()
	m.releaseSession()
	return m, tea.Quit
}

func (m Model) cycleFocus(step int) (tea.Model, tea.Cmd) {
	i := 0
	for j, f := range focusOrder {
		if f == m.focus {
			i = j
		}
	}
	i = (i + step + len(focusOrder)) % len(focusOrder)
	return m.setFocus(focusOrder[i])
}

func (m Model) setFocus(f Focus) (tea.Model, tea.Cmd) {
	m.focus = f
	m.subject.Blur()
	m.topic.Blur()
	m.query.Blur()

	var cmd tea.Cmd
	switch f {
	case FocusSubject:
		cmd = m.subject.Focus()
	case FocusTopic:
		cmd = m.topic.Focus()
	case FocusQuery:
		cmd = m.query.Focus()
	}
	return m, cmd
}

// updateFocusedInput forwards a message to the focused text input.
func (m Model) updateFocusedInput(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.focus {
	case FocusSubject:
		m.subject, cmd = m.subject.Update(msg)
	case FocusTopic:
		m.topic, cmd = m.topic.Update(msg)
	case FocusQuery:
		m.query, cmd = m.query.Update(msg)
	}
	return m, cmd
}

func (m Model) modelName() string      { return config.Models[m.modelIdx] }
func (m Model) specialistName() string { return config.Specialists[m.specialistIdx] }
func (m Model) langName() string       { return config.Languages[m.langIdx] }

// selectedLangs returns the checked languages in display order.
func (m Model) selectedLangs() []string {
	langs := []string{}
	for _, l := range config.Languages {
		if m.langs[l] {
			langs = append(langs, l)
		}
	}
	return langs
}

func (m Model) busy() bool {
	return m.suggestBusy || m.runBusy || m.queryBusy
}

func indexOf(list []string, s string) int {
	for i, v := range list {
		if v == s {
			return i
		}
	}
	return 0
}
