package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const storageMP3 = "https://kgic.example.org/storage/v1/object/public/podcasts/public/audios/2025-01-01/a.mp3"

var (
	trackA = Track{ID: "a", Title: "Sermon A", Artist: "KGIC", AudioURL: "https://cdn.example.com/a.mp3"}
	trackB = Track{ID: "b", Title: "Sermon B", Artist: "KGIC", AudioURL: "https://cdn.example.com/b.mp3"}
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func newClock() *clock {
	return &clock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestCoordinator(t *testing.T, signer Signer, opts ...Option) (*Coordinator, *fakeOutput, *clock) {
	t.Helper()
	out := newFakeOutput()
	clk := newClock()
	opts = append([]Option{WithClock(clk.Now)}, opts...)
	c := NewCoordinator(out, NewResolver(signer), opts...)
	t.Cleanup(func() { c.Close() })
	return c, out, clk
}

func TestNewCoordinatorAttachesOnce(t *testing.T) {
	_, out, _ := newTestCoordinator(t, nil)
	assert.Equal(t, 1, out.attached)
	assert.Equal(t, DefaultVolume, out.volume)
}

func TestPlaySingleActiveTrack(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, c.Play(ctx, trackB))

	s := c.Snapshot()
	require.NotNil(t, s.Track)
	assert.Equal(t, "b", s.Track.ID)
	assert.Equal(t, Playing, s.Transport)
	assert.Equal(t, trackB.AudioURL, out.Source())
	assert.Equal(t, []string{trackA.AudioURL, trackB.AudioURL}, out.loaded())
}

func TestPlaySameTrackTogglesTransport(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, trackA))
	require.Equal(t, Playing, c.Snapshot().Transport)

	require.NoError(t, c.Play(ctx, trackA))
	assert.Equal(t, Paused, c.Snapshot().Transport)

	require.NoError(t, c.Play(ctx, trackA))
	assert.Equal(t, Playing, c.Snapshot().Transport)

	// re-playing never reloads the source
	assert.Len(t, out.loaded(), 1)
}

func TestPlayOptimisticState(t *testing.T) {
	signer := &fakeSigner{gate: map[string]chan struct{}{storageMP3: make(chan struct{})}, entered: make(chan string, 1)}
	c, _, _ := newTestCoordinator(t, signer)

	done := make(chan error, 1)
	go func() {
		done <- c.Play(context.Background(), Track{ID: "s", AudioURL: storageMP3})
	}()

	<-signer.entered
	s := c.Snapshot()
	require.NotNil(t, s.Track)
	assert.Equal(t, "s", s.Track.ID)
	assert.Equal(t, Playing, s.Transport)
	assert.True(t, s.HasEverPlayed)
	assert.True(t, s.LastPausedAt.IsZero())
	assert.Zero(t, s.Position)

	close(signer.gate[storageMP3])
	require.NoError(t, <-done)
}

func TestVolumePersistsAcrossTracks(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, c.SetVolume(40))
	require.NoError(t, c.Play(ctx, trackB))

	assert.Equal(t, 40, c.Snapshot().Volume)
	assert.Equal(t, 40, out.volume)

	require.NoError(t, c.SetVolume(140))
	assert.Equal(t, 100, c.Snapshot().Volume)
	require.NoError(t, c.SetVolume(-5))
	assert.Equal(t, 0, c.Snapshot().Volume)
}

func TestToggleWithoutTrackIsNoop(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	require.NoError(t, c.Toggle(context.Background()))
	assert.Equal(t, Idle, c.Snapshot().Transport)
	assert.Empty(t, out.loaded())
}

func TestToggleFollowsDeviceEvents(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Play(ctx, trackA))

	// a device that ignores pause leaves the transport untouched
	out.mu.Lock()
	out.handler = nil
	out.mu.Unlock()
	require.NoError(t, c.Toggle(ctx))
	assert.Equal(t, Playing, c.Snapshot().Transport)
}

func TestSeek(t *testing.T) {
	c, out, _ := newTestCoordinator(t, nil)
	ctx := context.Background()
	require.NoError(t, c.Play(ctx, trackA))

	// duration unknown
	require.NoError(t, c.Seek(50))
	assert.Empty(t, out.seeks)

	out.emit(Event{Kind: EventLoadedMetadata, Duration: 200})
	require.NoError(t, c.Seek(50))
	require.NoError(t, c.Seek(150))

	assert.Equal(t, []float64{100, 200}, out.seeks)
	assert.Equal(t, 200.0, c.Snapshot().Position)
	assert.Equal(t, 100.0, c.Snapshot().ProgressPercent())
}

func TestPlayRetriesWithFreshSignature(t *testing.T) {
	signer := &fakeSigner{fail: func(_ string, fresh bool) bool { return !fresh }}
	c, out, _ := newTestCoordinator(t, signer)
	out.playErr = func(source string) error {
		if source == storageMP3 {
			return errors.New("403 from storage")
		}
		return nil
	}

	require.NoError(t, c.Play(context.Background(), Track{ID: "s", AudioURL: storageMP3}))

	assert.Equal(t, []string{storageMP3, storageMP3 + "?token=signed"}, out.loaded())
	assert.Equal(t, []signCall{{url: storageMP3, fresh: false}, {url: storageMP3, fresh: true}}, signer.calls)
	assert.Equal(t, Playing, c.Snapshot().Transport)
}

func TestPlayFailureBecomesPausedState(t *testing.T) {
	c, out, clk := newTestCoordinator(t, nil)
	out.playErr = func(string) error { return errors.New("autoplay blocked") }

	err := c.Play(context.Background(), trackA)
	assert.ErrorIs(t, err, ErrPlaybackUnsupported)

	s := c.Snapshot()
	require.NotNil(t, s.Track)
	assert.Equal(t, "a", s.Track.ID)
	assert.Equal(t, Paused, s.Transport)
	assert.Equal(t, AdvisoryStartFailed, s.Advisory)
	assert.Equal(t, clk.Now(), s.LastPausedAt)
	// external URL: no retry
	assert.Len(t, out.loaded(), 1)
}

func TestPlayNoRetryWhenSigningSucceeded(t *testing.T) {
	signer := &fakeSigner{}
	c, out, _ := newTestCoordinator(t, signer)
	out.playErr = func(string) error { return errors.New("decode error") }

	err := c.Play(context.Background(), Track{ID: "s", AudioURL: storageMP3})
	assert.ErrorIs(t, err, ErrPlaybackUnsupported)
	assert.Equal(t, 1, signer.callCount())
	assert.Len(t, out.loaded(), 1)
}

func TestStaleResolutionIsDiscarded(t *testing.T) {
	signer := &fakeSigner{
		gate:    map[string]chan struct{}{storageMP3: make(chan struct{})},
		entered: make(chan string, 1),
	}
	c, out, _ := newTestCoordinator(t, signer)
	ctx := context.Background()

	done := make(chan error, 1)
	go func() {
		done <- c.Play(ctx, Track{ID: "slow", AudioURL: storageMP3})
	}()
	<-signer.entered

	require.NoError(t, c.Play(ctx, trackB))
	close(signer.gate[storageMP3])
	require.NoError(t, <-done)

	assert.Equal(t, trackB.AudioURL, out.Source())
	assert.Equal(t, []string{trackB.AudioURL}, out.loaded())
	assert.Equal(t, "b", c.Snapshot().Track.ID)
}

func TestErrorEventPausesWithAdvisory(t *testing.T) {
	c, out, clk := newTestCoordinator(t, nil)
	require.NoError(t, c.Play(context.Background(), trackA))

	clk.Advance(5 * time.Second)
	out.emit(Event{Kind: EventError, Err: errors.New("unsupported codec")})

	s := c.Snapshot()
	assert.Equal(t, Paused, s.Transport)
	assert.Equal(t, AdvisoryUnsupported, s.Advisory)
	assert.Equal(t, clk.Now(), s.LastPausedAt)
}

func TestPlayReportsAtMostOncePerStart(t *testing.T) {
	counter := &fakeCounter{count: 5}
	reporter := NewReporter(counter)
	c, _, _ := newTestCoordinator(t, nil, WithReporter(reporter))
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, reporter.Wait(ctx))
	assert.Equal(t, []string{"a"}, counter.calls())

	require.NoError(t, c.Play(ctx, trackB))
	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, reporter.Wait(ctx))
	assert.ElementsMatch(t, []string{"a", "b", "a"}, counter.calls())
}

func TestReportFailureDoesNotAffectPlayback(t *testing.T) {
	counter := &fakeCounter{err: errors.New("network down")}
	reporter := NewReporter(counter)
	c, _, _ := newTestCoordinator(t, nil, WithReporter(reporter))
	ctx := context.Background()

	require.NoError(t, c.Play(ctx, trackA))
	require.NoError(t, reporter.Wait(ctx))

	assert.Equal(t, Playing, c.Snapshot().Transport)
	assert.Empty(t, c.Snapshot().Advisory)
	assert.Equal(t, int64(3), reporter.Count("a", 3))
}

func TestPlayRejectsEmptySource(t *testing.T) {
	c, _, _ := newTestCoordinator(t, nil)
	assert.ErrorIs(t, c.Play(context.Background(), Track{ID: "x"}), ErrEmptySource)
	assert.False(t, c.Snapshot().HasTrack())
}

func TestSubscribeReceivesLatestState(t *testing.T) {
	c, _, _ := newTestCoordinator(t, nil)
	updates, cancel := c.Subscribe()
	defer cancel()

	initial := <-updates
	assert.False(t, initial.HasTrack())

	require.NoError(t, c.Play(context.Background(), trackA))
	require.NoError(t, c.SetVolume(30))

	latest := <-updates
	assert.Equal(t, "a", latest.Track.ID)
	assert.Equal(t, 30, latest.Volume)

	cancel()
	_, ok := <-updates
	assert.False(t, ok)
}

func TestPlayable(t *testing.T) {
	c, _, _ := newTestCoordinator(t, nil)
	assert.True(t, c.Playable(trackA))
	assert.False(t, c.Playable(Track{ID: "o", AudioURL: "https://cdn.example.com/a.ogg"}))
	assert.True(t, c.Playable(Track{ID: "u", AudioURL: "https://cdn.example.com/stream"}))
}

func TestCloseReleasesOutput(t *testing.T) {
	out := newFakeOutput()
	c := NewCoordinator(out, nil)
	updates, _ := c.Subscribe()
	<-updates

	require.NoError(t, c.Close())
	assert.True(t, out.closed)
	_, ok := <-updates
	assert.False(t, ok)
}
