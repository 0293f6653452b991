package audio

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePlayer struct {
	loadErr  error
	startErr error
	calls    []string
	done     chan struct{}
	closed   bool
}

func (f *fakePlayer) Load(ctx context.Context, url string) error {
	f.calls = append(f.calls, "load "+url)
	return f.loadErr
}

func (f *fakePlayer) Start() (<-chan struct{}, error) {
	f.calls = append(f.calls, "start")
	if f.startErr != nil {
		return nil, f.startErr
	}
	f.done = make(chan struct{})
	return f.done, nil
}

func (f *fakePlayer) Pause() error  { f.calls = append(f.calls, "pause"); return nil }
func (f *fakePlayer) Resume() error { f.calls = append(f.calls, "resume"); return nil }
func (f *fakePlayer) Stop() error   { f.calls = append(f.calls, "stop"); return nil }
func (f *fakePlayer) Close() error  { f.calls = append(f.calls, "close"); f.closed = true; return nil }

func readySession(t *testing.T) (*Session, *fakePlayer) {
	t.Helper()
	fp := &fakePlayer{}
	s := NewSession(1, "http://localhost:8000/outputs/x.flac", "flac", fp)
	require.NoError(t, s.Load(context.Background()))
	s.Loaded(nil)
	require.Equal(t, Ready, s.State())
	return s, fp
}

func TestNewSessionIsLoading(t *testing.T) {
	s := NewSession(7, "u", "wav", &fakePlayer{})
	assert.Equal(t, Loading, s.State())
	assert.Equal(t, Controls{}, s.Controls())
	assert.Equal(t, "Loading audio...", s.Status())
	assert.Equal(t, uint64(7), s.ID())
}

func TestLoadFailure(t *testing.T) {
	fp := &fakePlayer{loadErr: errors.New("404 Not Found")}
	s := NewSession(1, "http://x/outputs/a.flac", "flac", fp)

	s.Loaded(s.Load(context.Background()))

	assert.Equal(t, Failed, s.State())
	assert.Equal(t, Controls{}, s.Controls())
	var le *LoadError
	require.ErrorAs(t, s.Err(), &le)
	assert.Equal(t, "http://x/outputs/a.flac", le.URL)
	assert.Contains(t, s.Status(), "404 Not Found")
}

func TestControlsPerState(t *testing.T) {
	tests := []struct {
		state State
		want  Controls
	}{
		{Idle, Controls{}},
		{Loading, Controls{}},
		{Ready, Controls{Play: true}},
		{Playing, Controls{Pause: true, Stop: true}},
		{Paused, Controls{Play: true, Stop: true}},
		{Stopped, Controls{Play: true}},
		{Ended, Controls{Play: true}},
		{Failed, Controls{}},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			assert.Equal(t, tt.want, ControlsFor(tt.state))
		})
	}
}

func TestPlayPauseResumeStop(t *testing.T) {
	s, fp := readySession(t)

	done, err := s.Play()
	require.NoError(t, err)
	require.NotNil(t, done)
	assert.Equal(t, Playing, s.State())
	assert.Equal(t, "Playing", s.Status())

	require.NoError(t, s.Pause())
	assert.Equal(t, Paused, s.State())
	assert.Equal(t, Controls{Play: true, Stop: true}, s.Controls())

	done, err = s.Play()
	require.NoError(t, err)
	assert.Nil(t, done, "resume reuses the running playback")
	assert.Equal(t, Playing, s.State())

	require.NoError(t, s.Stop())
	assert.Equal(t, Stopped, s.State())
	assert.Equal(t, Controls{Play: true}, s.Controls())

	assert.Equal(t, []string{"load http://localhost:8000/outputs/x.flac", "start", "pause", "resume", "stop"}, fp.calls)
}

func TestDisabledControlsAreNoOps(t *testing.T) {
	s, fp := readySession(t)

	require.NoError(t, s.Pause())
	require.NoError(t, s.Stop())
	assert.Equal(t, Ready, s.State())

	s.Play()
	s.Play()
	assert.Equal(t, Playing, s.State())

	assert.Equal(t, []string{"load http://localhost:8000/outputs/x.flac", "start"}, fp.calls)
}

func TestNaturalEnd(t *testing.T) {
	s, _ := readySession(t)
	s.Play()

	s.Finished(s.Run())
	assert.Equal(t, Ended, s.State())
	assert.Equal(t, Controls{Play: true}, s.Controls())

	_, err := s.Play()
	require.NoError(t, err)
	assert.Equal(t, Playing, s.State())
}

func TestStaleEndIgnored(t *testing.T) {
	s, _ := readySession(t)
	s.Play()
	first := s.Run()

	s.Stop()
	s.Play()
	s.Finished(first)
	assert.Equal(t, Playing, s.State(), "end of a stopped run must not end the next one")
}

func TestStartFailure(t *testing.T) {
	fp := &fakePlayer{startErr: errors.New("exec: ffplay not found")}
	s := NewSession(1, "u", "", fp)
	s.Loaded(nil)

	_, err := s.Play()
	require.Error(t, err)
	assert.Equal(t, Failed, s.State())
}

func TestRelease(t *testing.T) {
	s, fp := readySession(t)
	s.Play()

	require.NoError(t, s.Release())
	assert.True(t, fp.closed)
	assert.True(t, s.Released())
	assert.Equal(t, Idle, s.State())
	assert.Equal(t, Controls{}, s.Controls())

	s.Finished(s.Run())
	s.Loaded(nil)
	assert.Equal(t, Idle, s.State())

	require.NoError(t, s.Release())
}

func TestLoadedOnlyFromLoading(t *testing.T) {
	s, _ := readySession(t)
	s.Play()
	s.Loaded(errors.New("late"))
	assert.Equal(t, Playing, s.State())
}

func TestFailedSession(t *testing.T) {
	s := NewFailedSession(3, "http://x/outputs/a.flac", "flac", errors.New("ffplay not found"))
	assert.Equal(t, Failed, s.State())
	assert.Equal(t, Controls{}, s.Controls())

	var le *LoadError
	require.ErrorAs(t, s.Err(), &le)
	assert.Contains(t, s.Status(), "ffplay not found")

	done, err := s.Play()
	assert.Nil(t, done)
	assert.NoError(t, err)
	assert.ErrorIs(t, s.Load(context.Background()), errNoPlayer)

	assert.NoError(t, s.Release())
	assert.True(t, s.Released())
}
