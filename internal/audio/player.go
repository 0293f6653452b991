package audio

import "context"

// Player is the playback backend a Session drives.
type Player interface {
	// Load fetches url and prepares it for playback.
	Load(ctx context.Context, url string) error
	// Start plays from the beginning. The channel closes when playback
	// stops for any reason.
	Start() (<-chan struct{}, error)
	Pause() error
	Resume() error
	// Stop ends playback; the next Start plays from the beginning.
	Stop() error
	// Close stops playback and frees any resources.
	Close() error
}
