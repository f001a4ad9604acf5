package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"kgicweb/logger"
)

var errSuperseded = errors.New("superseded by a newer play")

// Coordinator owns the single playback session and the single output device.
// Construct it once per process and share it.
//
// Lock order: outMu may be held while acquiring mu, never the reverse.
type Coordinator struct {
	out      Output
	resolver *Resolver
	reporter *Reporter
	now      func() time.Time

	outMu sync.Mutex // serializes commands to out

	mu      sync.Mutex
	state   Session
	seq     uint64
	subs    map[int]chan Session
	nextSub int
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithReporter reports a play every time a new track becomes current.
func WithReporter(r *Reporter) Option {
	return func(c *Coordinator) { c.reporter = r }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// WithVolume sets the initial volume.
func WithVolume(percent int) Option {
	return func(c *Coordinator) { c.state.Volume = clampVolume(percent) }
}

// NewCoordinator takes ownership of out and attaches to its events.
func NewCoordinator(out Output, resolver *Resolver, opts ...Option) *Coordinator {
	if resolver == nil {
		resolver = NewResolver(nil)
	}
	c := &Coordinator{
		out:      out,
		resolver: resolver,
		now:      time.Now,
		state:    Session{Volume: DefaultVolume},
		subs:     make(map[int]chan Session),
	}
	for _, opt := range opts {
		opt(c)
	}

	out.OnEvent(c.handleEvent)
	if err := out.SetVolume(c.state.Volume); err != nil {
		logger.Warn("Failed to apply initial volume", logger.ErrorField(err))
	}
	return c
}

// Snapshot returns a copy of the current session.
func (c *Coordinator) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe returns a channel that always holds the latest session after a
// change. Slow readers skip intermediate states.
func (c *Coordinator) Subscribe() (<-chan Session, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := c.nextSub
	c.nextSub++
	ch := make(chan Session, 1)
	ch <- c.state
	c.subs[id] = ch

	return ch, func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if sub, ok := c.subs[id]; ok {
			delete(c.subs, id)
			close(sub)
		}
	}
}

func (c *Coordinator) publishLocked() {
	for _, ch := range c.subs {
		select {
		case <-ch:
		default:
		}
		ch <- c.state
	}
}

// Play makes track current and starts it. Playing the current track again
// toggles pause instead. Failures end in a paused session with an advisory;
// the returned error is for logging only.
func (c *Coordinator) Play(ctx context.Context, track Track) error {
	if track.AudioURL == "" {
		return ErrEmptySource
	}

	c.mu.Lock()
	if c.state.Track != nil && c.state.Track.ID == track.ID {
		c.mu.Unlock()
		return c.Toggle(ctx)
	}

	c.seq++
	seq := c.seq
	t := track
	c.state.Track = &t
	c.state.Transport = Playing
	c.state.Position = 0
	c.state.Duration = 0
	c.state.HasEverPlayed = true
	c.state.LastPausedAt = time.Time{}
	c.state.Advisory = ""
	c.publishLocked()
	c.mu.Unlock()

	logger.Info("Play requested",
		logger.String("id", track.ID),
		logger.String("title", track.Title))

	if c.reporter != nil {
		c.reporter.ReportPlay(seq, track.ID)
	}

	resolved := c.resolver.Resolve(ctx, track.AudioURL)
	err := c.start(ctx, seq, resolved)
	if err == nil || errors.Is(err, errSuperseded) {
		return nil
	}

	// 签名未生效时强制重新签名再试一次
	if IsStorageURL(track.AudioURL) && resolved == track.AudioURL {
		fresh := c.resolver.ForceResolve(ctx, track.AudioURL)
		if fresh != resolved {
			logger.Info("Retrying playback with a freshly signed URL", logger.String("id", track.ID))
			err = c.start(ctx, seq, fresh)
			if err == nil || errors.Is(err, errSuperseded) {
				return nil
			}
		}
	}

	return c.fail(seq, err)
}

// start loads url unless it is already the source, then starts output.
// It gives up without touching the device once a newer play has begun.
func (c *Coordinator) start(ctx context.Context, seq uint64, url string) error {
	c.outMu.Lock()
	defer c.outMu.Unlock()

	if !c.isCurrent(seq) {
		logger.Debug("Discarding stale resolution", logger.Uint64("seq", seq))
		return errSuperseded
	}
	if c.out.Source() != url {
		if err := c.out.Load(ctx, url); err != nil {
			return fmt.Errorf("load source: %w", err)
		}
	}
	if err := c.out.Play(ctx); err != nil {
		return fmt.Errorf("start output: %w", err)
	}
	return nil
}

func (c *Coordinator) isCurrent(seq uint64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return seq == c.seq
}

func (c *Coordinator) fail(seq uint64, cause error) error {
	c.outMu.Lock()
	if c.isCurrent(seq) {
		if err := c.out.Pause(); err != nil {
			logger.Debug("Pause after failed start", logger.ErrorField(err))
		}
	}
	c.outMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if seq != c.seq {
		return nil
	}
	c.state.Transport = Paused
	c.state.LastPausedAt = c.now()
	c.state.Advisory = AdvisoryStartFailed
	c.publishLocked()

	logger.Warn("Playback failed", logger.ErrorField(cause))
	return fmt.Errorf("%w: %v", ErrPlaybackUnsupported, cause)
}

// Toggle pauses when playing and resumes otherwise. The transport follows the
// device's events rather than this call.
func (c *Coordinator) Toggle(ctx context.Context) error {
	c.mu.Lock()
	if c.state.Track == nil {
		c.mu.Unlock()
		return nil
	}
	playing := c.state.Transport == Playing
	c.mu.Unlock()

	c.outMu.Lock()
	var err error
	if playing {
		err = c.out.Pause()
	} else {
		err = c.out.Play(ctx)
	}
	c.outMu.Unlock()

	if err != nil && !playing {
		c.mu.Lock()
		c.state.Advisory = AdvisoryStartFailed
		c.publishLocked()
		c.mu.Unlock()
		logger.Warn("Resume failed", logger.ErrorField(err))
	}
	return err
}

// Seek jumps to percent of the known duration. It does nothing while the duration is unknown.
func (c *Coordinator) Seek(percent float64) error {
	c.mu.Lock()
	if c.state.Track == nil || c.state.Duration <= 0 {
		c.mu.Unlock()
		return nil
	}
	if percent < 0 {
		percent = 0
	} else if percent > 100 {
		percent = 100
	}
	pos := percent * c.state.Duration / 100
	c.state.Position = pos
	c.publishLocked()
	c.mu.Unlock()

	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.Seek(pos)
}

// SetVolume clamps percent to [0, 100]. The volume survives track changes.
func (c *Coordinator) SetVolume(percent int) error {
	v := clampVolume(percent)

	c.mu.Lock()
	c.state.Volume = v
	c.publishLocked()
	c.mu.Unlock()

	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.SetVolume(v)
}

func clampVolume(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// Next is a hook for playlist navigation. There is no playlist ordering yet.
func (c *Coordinator) Next() {
	logger.Info("Next track requested; no playlist is configured")
}

// Previous is a hook for playlist navigation. There is no playlist ordering yet.
func (c *Coordinator) Previous() {
	logger.Info("Previous track requested; no playlist is configured")
}

// Playable reports whether the device claims support for the track's format.
// Unknown formats are assumed playable.
func (c *Coordinator) Playable(track Track) bool {
	mt := MediaType(track.AudioURL)
	if mt == "" {
		return true
	}
	return c.out.CanPlay(mt)
}

func (c *Coordinator) handleEvent(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.Kind == EventError {
		logger.Warn("Output reported an error", logger.ErrorField(ev.Err))
	}
	c.state = Reduce(c.state, ev, c.now())
	c.publishLocked()
}

// Close releases the output device and ends all subscriptions.
func (c *Coordinator) Close() error {
	c.mu.Lock()
	for id, ch := range c.subs {
		delete(c.subs, id)
		close(ch)
	}
	c.mu.Unlock()

	c.outMu.Lock()
	defer c.outMu.Unlock()
	return c.out.Close()
}
