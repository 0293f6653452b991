package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/exec"
	"path"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"

	"github.com/vinicius00franco/tts-sst-idiomas/internal/logging"
)

// DefaultCommand plays a file headless and exits at the end.
const DefaultCommand = "ffplay -nodisp -autoexit -loglevel quiet {file}"

// filePlaceholder is replaced with the downloaded file path. When the
// command has no placeholder the path is appended.
const filePlaceholder = "{file}"

var (
	errNotLoaded    = errors.New("audio not loaded")
	errPlayerClosed = errors.New("player closed")
)

// ExecPlayer downloads the audio to a temp file and plays it with an
// external command such as ffplay or mpv.
type ExecPlayer struct {
	args       []string
	httpClient *http.Client
	logger     *slog.Logger

	mu     sync.Mutex
	file   string
	cmd    *exec.Cmd
	done   chan struct{}
	paused bool
	closed bool
}

// NewExecPlayer parses command with shell quoting rules. Environment
// variables in the command are expanded.
func NewExecPlayer(command string, httpClient *http.Client) (*ExecPlayer, error) {
	if strings.TrimSpace(command) == "" {
		command = DefaultCommand
	}
	p := shellwords.NewParser()
	p.ParseEnv = true
	args, err := p.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse player command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("parse player command: empty")
	}
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &ExecPlayer{
		args:       args,
		httpClient: httpClient,
		logger:     logging.WithComponent("player"),
	}, nil
}

// Args returns the command line that would play file.
func (p *ExecPlayer) Args(file string) []string {
	out := make([]string, 0, len(p.args)+1)
	replaced := false
	for _, a := range p.args {
		if strings.Contains(a, filePlaceholder) {
			a = strings.ReplaceAll(a, filePlaceholder, file)
			replaced = true
		}
		out = append(out, a)
	}
	if !replaced {
		out = append(out, file)
	}
	return out
}

// Load downloads url into a temp file. It fails once the player is closed.
func (p *ExecPlayer) Load(ctx context.Context, url string) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return errPlayerClosed
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("download: %s", resp.Status)
	}

	ext := path.Ext(req.URL.Path)
	f, err := os.CreateTemp("", "ttsdesk-*"+ext)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(f.Name())
		return fmt.Errorf("write audio: %w", err)
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		os.Remove(f.Name())
		return errPlayerClosed
	}
	old := p.file
	p.file = f.Name()
	p.mu.Unlock()
	if old != "" {
		os.Remove(old)
	}

	p.logger.Debug("audio downloaded", "url", url, "file", f.Name(), "bytes", n)
	return nil
}

// Start launches the player command.
func (p *ExecPlayer) Start() (<-chan struct{}, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.file == "" {
		return nil, errNotLoaded
	}
	if p.cmd != nil {
		p.killLocked()
	}

	args := p.Args(p.file)
	cmd := exec.Command(args[0], args[1:]...)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", args[0], err)
	}
	done := make(chan struct{})
	p.cmd, p.done, p.paused = cmd, done, false

	go func() {
		err := cmd.Wait()
		p.logger.Debug("player exited", "pid", cmd.Process.Pid, "error", err)
		p.mu.Lock()
		if p.cmd == cmd {
			p.cmd, p.done, p.paused = nil, nil, false
		}
		p.mu.Unlock()
		close(done)
	}()
	return done, nil
}

// Pause suspends the player process.
func (p *ExecPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || p.paused {
		return nil
	}
	if err := suspend(p.cmd.Process); err != nil {
		return err
	}
	p.paused = true
	return nil
}

// Resume continues a suspended player process.
func (p *ExecPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cmd == nil || !p.paused {
		return nil
	}
	if err := resume(p.cmd.Process); err != nil {
		return err
	}
	p.paused = false
	return nil
}

// Stop kills the player process and waits for it to exit.
func (p *ExecPlayer) Stop() error {
	p.mu.Lock()
	done := p.killLocked()
	p.mu.Unlock()
	if done != nil {
		<-done
	}
	return nil
}

// Close stops playback and removes the temp file.
func (p *ExecPlayer) Close() error {
	p.Stop()

	p.mu.Lock()
	p.closed = true
	file := p.file
	p.file = ""
	p.mu.Unlock()

	if file == "" {
		return nil
	}
	if err := os.Remove(file); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp audio: %w", err)
	}
	return nil
}

func (p *ExecPlayer) killLocked() chan struct{} {
	if p.cmd == nil {
		return nil
	}
	if p.paused {
		resume(p.cmd.Process)
	}
	p.cmd.Process.Kill()
	return p.done
}
