package audio

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"kgicweb/core/playback"
	"kgicweb/logger"
)

const (
	socketWaitRetries = 20
	socketWaitDelay   = 150 * time.Millisecond
	// 等待 loadfile 结果的上限，超时后照常开始播放
	loadWaitTimeout = 15 * time.Second
)

// observed mpv properties, in observe_property id order
var observedProperties = []string{"pause", "time-pos", "duration", "eof-reached"}

// MPVOutput drives a headless mpv over JSON IPC and implements playback.Output.
type MPVOutput struct {
	path       string
	socketPath string
	owned      bool

	cmd    *exec.Cmd
	exited chan struct{}
	client *ipcClient
	events net.Conn

	mu      sync.Mutex
	started bool
	source  string
	volume  int
	handler func(playback.Event)
	// loadDone receives the outcome of the last loadfile until Play takes it.
	loadDone    chan error
	loadTimeout time.Duration
}

var _ playback.Output = (*MPVOutput)(nil)

// NewMPVOutput returns an output that launches mpv on first Load.
func NewMPVOutput(mpvPath string) *MPVOutput {
	if mpvPath == "" {
		mpvPath = "mpv"
	}
	return &MPVOutput{path: mpvPath, owned: true, volume: playback.DefaultVolume, loadTimeout: loadWaitTimeout}
}

// AttachMPV connects to an mpv already listening on socketPath.
func AttachMPV(socketPath string) (*MPVOutput, error) {
	m := &MPVOutput{socketPath: socketPath, volume: playback.DefaultVolume, loadTimeout: loadWaitTimeout}
	m.client = newIPCClient(socketPath)
	if err := m.listen(); err != nil {
		return nil, err
	}
	m.started = true
	return m, nil
}

func (m *MPVOutput) ensureStarted() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return nil
	}

	if m.socketPath == "" {
		m.socketPath = filepath.Join(os.TempDir(), "kgic-mpv-"+uuid.NewString()[:8]+".sock")
	}
	args := []string{
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--really-quiet",
		"--keep-open=yes",
		fmt.Sprintf("--volume=%d", m.volume),
		"--input-ipc-server=" + m.socketPath,
	}
	m.cmd = exec.Command(m.path, args...)
	if err := m.cmd.Start(); err != nil {
		return fmt.Errorf("start mpv: %w", err)
	}
	m.exited = make(chan struct{})
	go func(cmd *exec.Cmd, exited chan struct{}) {
		_ = cmd.Wait()
		close(exited)
	}(m.cmd, m.exited)

	if err := m.waitForSocket(); err != nil {
		select {
		case <-m.exited:
		default:
			_ = m.cmd.Process.Kill()
		}
		return fmt.Errorf("mpv socket not ready: %w", err)
	}

	m.client = newIPCClient(m.socketPath)
	if err := m.listen(); err != nil {
		return err
	}
	m.started = true
	logger.Info("mpv started", logger.String("socket", m.socketPath), logger.Int("pid", m.cmd.Process.Pid))
	return nil
}

func (m *MPVOutput) waitForSocket() error {
	for i := 0; i < socketWaitRetries; i++ {
		time.Sleep(socketWaitDelay)
		select {
		case <-m.exited:
			return errors.New("mpv exited before socket was ready")
		default:
		}
		if conn, err := net.Dial("unix", m.socketPath); err == nil {
			conn.Close()
			return nil
		}
	}
	return fmt.Errorf("socket %s not ready after %d attempts", m.socketPath, socketWaitRetries)
}

// listen opens the event connection. Property observers belong to the
// connection that registered them, so they are registered here.
func (m *MPVOutput) listen() error {
	conn, err := net.Dial("unix", m.socketPath)
	if err != nil {
		return fmt.Errorf("event listener connect: %w", err)
	}
	for i, name := range observedProperties {
		payload, _ := json.Marshal(ipcCommand{Command: []interface{}{"observe_property", i + 1, name}})
		if _, err := conn.Write(append(payload, '\n')); err != nil {
			conn.Close()
			return fmt.Errorf("observe %s: %w", name, err)
		}
	}
	m.events = conn
	go m.readLoop(conn)
	return nil
}

func (m *MPVOutput) readLoop(conn net.Conn) {
	scanner := bufio.NewScanner(conn)
	for scanner.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(scanner.Bytes(), &msg); err != nil {
			continue
		}
		if ev, ok := translate(msg); ok {
			m.mu.Lock()
			h := m.handler
			m.mu.Unlock()
			if h != nil {
				h(ev)
			}
		}
		// 先分发事件，再通知等待中的 Play
		if settled, err := loadOutcome(msg); settled {
			m.mu.Lock()
			ch := m.loadDone
			m.mu.Unlock()
			if ch != nil {
				select {
				case ch <- err:
				default:
				}
			}
		}
	}
	if err := scanner.Err(); err != nil && !errors.Is(err, net.ErrClosed) {
		logger.Warn("mpv event listener stopped", logger.ErrorField(err))
	}
}

// translate maps an mpv IPC message to a playback event.
func translate(msg ipcMessage) (playback.Event, bool) {
	switch msg.Event {
	case "property-change":
		switch msg.Name {
		case "pause":
			paused, ok := msg.Data.(bool)
			if !ok {
				return playback.Event{}, false
			}
			if paused {
				return playback.Event{Kind: playback.EventPause}, true
			}
			return playback.Event{Kind: playback.EventPlay}, true
		case "time-pos":
			if pos, ok := msg.Data.(float64); ok {
				return playback.Event{Kind: playback.EventTimeUpdate, Position: pos}, true
			}
		case "duration":
			if d, ok := msg.Data.(float64); ok {
				return playback.Event{Kind: playback.EventLoadedMetadata, Duration: d}, true
			}
		case "eof-reached":
			if eof, ok := msg.Data.(bool); ok && eof {
				return playback.Event{Kind: playback.EventEnded}, true
			}
		}
	case "end-file":
		switch msg.Reason {
		case "error":
			return playback.Event{Kind: playback.EventError, Err: endFileError(msg)}, true
		case "eof":
			return playback.Event{Kind: playback.EventEnded}, true
		}
	}
	return playback.Event{}, false
}

// loadOutcome reports whether msg ends a pending loadfile, and how.
func loadOutcome(msg ipcMessage) (bool, error) {
	switch msg.Event {
	case "file-loaded", "playback-restart":
		return true, nil
	case "end-file":
		if msg.Reason == "error" {
			return true, endFileError(msg)
		}
	}
	return false, nil
}

func endFileError(msg ipcMessage) error {
	cause := msg.FileError
	if cause == "" {
		cause = "unknown error"
	}
	return fmt.Errorf("mpv: %s", cause)
}

// Source returns the URL passed to the last successful Load.
func (m *MPVOutput) Source() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.source
}

// Load replaces the current file, paused.
func (m *MPVOutput) Load(_ context.Context, rawURL string) error {
	target, err := sanitizeMediaTarget(rawURL)
	if err != nil {
		return fmt.Errorf("invalid media target: %w", err)
	}
	if err := m.ensureStarted(); err != nil {
		return err
	}
	if _, err := m.client.send("set_property", "pause", true); err != nil {
		return err
	}

	done := make(chan error, 1)
	m.mu.Lock()
	m.loadDone = done
	m.mu.Unlock()
	if _, err := m.client.send("loadfile", target, "replace"); err != nil {
		m.mu.Lock()
		m.loadDone = nil
		m.mu.Unlock()
		return err
	}

	m.mu.Lock()
	m.source = rawURL
	m.mu.Unlock()
	return nil
}

// Play resumes output. After a Load it first waits for mpv to open the file
// and fails, still paused, when mpv reports an end-file error.
func (m *MPVOutput) Play(ctx context.Context) error {
	m.mu.Lock()
	source, done, timeout := m.source, m.loadDone, m.loadTimeout
	m.loadDone = nil
	m.mu.Unlock()
	if source == "" {
		return playback.ErrEmptySource
	}

	if done != nil {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		select {
		case err := <-done:
			if err != nil {
				return err
			}
		case <-timer.C:
			logger.Debug("mpv has not opened the file yet, starting anyway", logger.String("source", source))
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	_, err := m.client.send("set_property", "pause", false)
	return err
}

func (m *MPVOutput) Pause() error {
	if !m.isStarted() {
		return nil
	}
	_, err := m.client.send("set_property", "pause", true)
	return err
}

func (m *MPVOutput) Seek(seconds float64) error {
	if m.Source() == "" {
		return nil
	}
	_, err := m.client.send("seek", seconds, "absolute")
	return err
}

// SetVolume is applied at launch when mpv is not running yet.
func (m *MPVOutput) SetVolume(percent int) error {
	m.mu.Lock()
	m.volume = percent
	started := m.started
	m.mu.Unlock()
	if !started {
		return nil
	}
	_, err := m.client.send("set_property", "volume", percent)
	return err
}

// CanPlay is true for any audio type; mpv reports real decode failures as end-file errors.
func (m *MPVOutput) CanPlay(mediaType string) bool {
	return strings.HasPrefix(mediaType, "audio/")
}

func (m *MPVOutput) OnEvent(handler func(playback.Event)) {
	m.mu.Lock()
	m.handler = handler
	m.mu.Unlock()
}

func (m *MPVOutput) isStarted() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.started
}

// Close stops the event listener and, when this output launched mpv, quits it.
func (m *MPVOutput) Close() error {
	m.mu.Lock()
	started := m.started
	m.started = false
	m.mu.Unlock()
	if !started {
		return nil
	}

	if m.events != nil {
		m.events.Close()
	}
	if !m.owned {
		return nil
	}

	_, _ = m.client.send("quit")
	select {
	case <-m.exited:
	case <-time.After(3 * time.Second):
		logger.Warn("mpv did not quit, killing")
		_ = m.cmd.Process.Kill()
	}
	_ = os.Remove(m.socketPath)
	return nil
}

// sanitizeMediaTarget rejects anything mpv could read as an option.
func sanitizeMediaTarget(link string) (string, error) {
	l := strings.TrimSpace(link)
	if l == "" {
		return "", errors.New("empty URL")
	}
	if strings.ContainsAny(l, "\x00\n\r") {
		return "", errors.New("invalid control characters in URL")
	}
	if strings.HasPrefix(l, "-") {
		return "", errors.New("url must not start with '-'")
	}
	if strings.Contains(l, "://") {
		u, err := url.Parse(l)
		if err != nil {
			return "", fmt.Errorf("invalid URL: %w", err)
		}
		switch strings.ToLower(u.Scheme) {
		case "http", "https":
			return l, nil
		default:
			return "", fmt.Errorf("unsupported URL scheme: %s", u.Scheme)
		}
	}
	return filepath.Clean(l), nil
}
