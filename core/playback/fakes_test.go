package playback

import (
	"context"
	"errors"
	"sync"
)

// fakeOutput emits events synchronously, like a device that reacts instantly.
type fakeOutput struct {
	mu       sync.Mutex
	source   string
	loads    []string
	seeks    []float64
	volume   int
	handler  func(Event)
	attached int
	closed   bool
	playErr  func(source string) error
	canPlay  map[string]bool
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{canPlay: map[string]bool{"audio/mpeg": true, "audio/mp4": true}}
}

func (f *fakeOutput) Source() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.source
}

func (f *fakeOutput) Load(_ context.Context, url string) error {
	f.mu.Lock()
	f.source = url
	f.loads = append(f.loads, url)
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) Play(context.Context) error {
	f.mu.Lock()
	src, fn := f.source, f.playErr
	f.mu.Unlock()
	if fn != nil {
		if err := fn(src); err != nil {
			return err
		}
	}
	f.emit(Event{Kind: EventPlay})
	return nil
}

func (f *fakeOutput) Pause() error {
	f.emit(Event{Kind: EventPause})
	return nil
}

func (f *fakeOutput) Seek(seconds float64) error {
	f.mu.Lock()
	f.seeks = append(f.seeks, seconds)
	f.mu.Unlock()
	f.emit(Event{Kind: EventTimeUpdate, Position: seconds})
	return nil
}

func (f *fakeOutput) SetVolume(percent int) error {
	f.mu.Lock()
	f.volume = percent
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) CanPlay(mediaType string) bool {
	return f.canPlay[mediaType]
}

func (f *fakeOutput) OnEvent(handler func(Event)) {
	f.mu.Lock()
	f.handler = handler
	f.attached++
	f.mu.Unlock()
}

func (f *fakeOutput) Close() error {
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
	return nil
}

func (f *fakeOutput) emit(ev Event) {
	f.mu.Lock()
	h := f.handler
	f.mu.Unlock()
	if h != nil {
		h(ev)
	}
}

func (f *fakeOutput) loaded() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.loads...)
}

type signCall struct {
	url   string
	fresh bool
}

// fakeSigner signs by appending a token, or fails when fail returns true.
type fakeSigner struct {
	mu      sync.Mutex
	calls   []signCall
	fail    func(url string, fresh bool) bool
	gate    map[string]chan struct{} // blocks signing of a URL until closed
	entered chan string
}

func (s *fakeSigner) SignURL(ctx context.Context, rawURL string, fresh bool) (string, error) {
	s.mu.Lock()
	s.calls = append(s.calls, signCall{url: rawURL, fresh: fresh})
	gate := s.gate[rawURL]
	fail := s.fail
	entered := s.entered
	s.mu.Unlock()

	if entered != nil {
		entered <- rawURL
	}
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	if fail != nil && fail(rawURL, fresh) {
		return "", errors.New("sign-url unavailable")
	}
	return rawURL + "?token=signed", nil
}

func (s *fakeSigner) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type fakeCounter struct {
	mu    sync.Mutex
	ids   []string
	err   error
	count int64
}

func (c *fakeCounter) IncrementPlay(_ context.Context, id string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.ids = append(c.ids, id)
	if c.err != nil {
		return 0, c.err
	}
	return c.count, nil
}

func (c *fakeCounter) calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.ids...)
}
