package playback

import "context"

// Output is the single audio output device owned by the coordinator.
//
// Commands may invoke the event handler synchronously; the coordinator never
// holds its state lock while issuing commands.
type Output interface {
	// Source returns the currently loaded URL, or "" when nothing is loaded.
	Source() string
	// Load replaces the source without starting playback.
	Load(ctx context.Context, url string) error
	// Play starts or resumes playback. An error means output did not start.
	Play(ctx context.Context) error
	Pause() error
	Seek(seconds float64) error
	// SetVolume takes a percentage in [0, 100].
	SetVolume(percent int) error
	// CanPlay reports whether the device can decode the media type.
	CanPlay(mediaType string) bool
	// OnEvent attaches the event handler. It is called once.
	OnEvent(handler func(Event))
	Close() error
}
