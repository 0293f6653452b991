// Package audio manages the playback session for one generated audio file.
//
// A Session owns a single Player and walks the state machine
// Idle → Loading → Ready → Playing ⇄ Paused → Stopped/Ended, with Failed for
// a load error. Controls that are disabled in the current state are no-ops.
// Session is not safe for concurrent use; the TUI only touches it from
// Update. Blocking player work (Load, waiting for the end of playback)
// happens in commands that report back with the session ID.
package audio

import (
	"context"
	"errors"
	"fmt"
)

// State is a playback state.
type State int

const (
	Idle State = iota
	Loading
	Ready
	Playing
	Paused
	Stopped
	Ended
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Loading:
		return "loading"
	case Ready:
		return "ready"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Stopped:
		return "stopped"
	case Ended:
		return "ended"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Controls tells which playback controls are enabled.
type Controls struct {
	Play  bool
	Pause bool
	Stop  bool
}

// ControlsFor returns the enabled controls in state s.
func ControlsFor(s State) Controls {
	switch s {
	case Ready, Stopped, Ended:
		return Controls{Play: true}
	case Playing:
		return Controls{Pause: true, Stop: true}
	case Paused:
		return Controls{Play: true, Stop: true}
	}
	return Controls{}
}

var errNoPlayer = errors.New("no audio player")

// LoadError reports that the audio resource could not be prepared.
type LoadError struct {
	URL string
	Err error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load audio %s: %v", e.URL, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Session is one playable resource and its state.
type Session struct {
	id     uint64
	url    string
	format string
	player Player

	state    State
	status   string
	err      error
	run      uint64
	released bool
}

// NewSession creates a session in the Loading state. The caller must run
// Load (off the UI loop) and feed the result to Loaded.
func NewSession(id uint64, url, format string, player Player) *Session {
	s := &Session{id: id, url: url, format: format, player: player}
	s.set(Loading)
	return s
}

// NewFailedSession creates a session for url whose player could not be
// created. It stays Failed with every control off.
func NewFailedSession(id uint64, url, format string, err error) *Session {
	s := &Session{id: id, url: url, format: format}
	s.fail(&LoadError{URL: url, Err: err})
	return s
}

// ID identifies the session in asynchronous messages.
func (s *Session) ID() uint64 { return s.id }

// URL is the playable resource.
func (s *Session) URL() string { return s.url }

// Format is the file format hint, e.g. "flac".
func (s *Session) Format() string { return s.format }

// State returns the current state.
func (s *Session) State() State { return s.state }

// Status is the human-readable status line for the current state.
func (s *Session) Status() string { return s.status }

// Err returns the error that moved the session to Failed, if any.
func (s *Session) Err() error { return s.err }

// Run counts playback starts. End notifications carry the run they belong
// to so a stopped run cannot end a later one.
func (s *Session) Run() uint64 { return s.run }

// Controls returns the controls enabled right now.
func (s *Session) Controls() Controls {
	if s.released {
		return Controls{}
	}
	return ControlsFor(s.state)
}

// Load prepares the resource. It blocks and does not change state; pass
// the result to Loaded.
func (s *Session) Load(ctx context.Context) error {
	if s.player == nil {
		return errNoPlayer
	}
	return s.player.Load(ctx, s.url)
}

// Loaded applies the outcome of Load.
func (s *Session) Loaded(err error) {
	if s.released || s.state != Loading {
		return
	}
	if err != nil {
		s.fail(&LoadError{URL: s.url, Err: err})
		return
	}
	s.set(Ready)
}

// Play starts or resumes playback. When a new run starts the returned
// channel closes at the end of playback; it is nil on resume and when the
// control is disabled.
func (s *Session) Play() (<-chan struct{}, error) {
	if !s.Controls().Play {
		return nil, nil
	}
	if s.state == Paused {
		if err := s.player.Resume(); err != nil {
			return nil, fmt.Errorf("resume: %w", err)
		}
		s.set(Playing)
		return nil, nil
	}

	done, err := s.player.Start()
	if err != nil {
		s.fail(fmt.Errorf("start playback: %w", err))
		return nil, s.err
	}
	s.run++
	s.set(Playing)
	return done, nil
}

// Pause suspends playback.
func (s *Session) Pause() error {
	if !s.Controls().Pause {
		return nil
	}
	if err := s.player.Pause(); err != nil {
		return fmt.Errorf("pause: %w", err)
	}
	s.set(Paused)
	return nil
}

// Stop ends playback and rewinds.
func (s *Session) Stop() error {
	if !s.Controls().Stop {
		return nil
	}
	// Invalidate the running end notification before the player kills it.
	s.run++
	if err := s.player.Stop(); err != nil {
		return fmt.Errorf("stop: %w", err)
	}
	s.set(Stopped)
	return nil
}

// Finished records natural completion of run.
func (s *Session) Finished(run uint64) {
	if s.released || run != s.run {
		return
	}
	if s.state != Playing && s.state != Paused {
		return
	}
	s.set(Ended)
}

// Release frees the player. The session is inert afterwards.
func (s *Session) Release() error {
	if s.released {
		return nil
	}
	s.released = true
	s.run++
	s.state = Idle
	s.status = statusLine(Idle, nil)
	if s.player == nil {
		return nil
	}
	return s.player.Close()
}

// Released reports whether Release was called.
func (s *Session) Released() bool { return s.released }

func (s *Session) set(st State) {
	s.state = st
	s.status = statusLine(st, nil)
}

func (s *Session) fail(err error) {
	s.err = err
	s.state = Failed
	s.status = statusLine(Failed, err)
}

func statusLine(s State, err error) string {
	switch s {
	case Idle:
		return "No audio"
	case Loading:
		return "Loading audio..."
	case Ready:
		return "Ready to play"
	case Playing:
		return "Playing"
	case Paused:
		return "Paused"
	case Stopped:
		return "Stopped"
	case Ended:
		return "Finished"
	case Failed:
		if err != nil {
			return "Audio error: " + err.Error()
		}
		return "Audio error"
	}
	return s.String()
}
