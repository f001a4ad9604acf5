package playback

import "time"

// EventKind identifies an event emitted by the output device.
type EventKind int

const (
	EventPlay EventKind = iota
	EventPause
	EventEnded
	EventTimeUpdate
	EventLoadedMetadata
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventTimeUpdate:
		return "timeupdate"
	case EventLoadedMetadata:
		return "loadedmetadata"
	case EventError:
		return "error"
	default:
		return "unknown"
	}
}

// Event is one notification from the output device.
type Event struct {
	Kind     EventKind
	Position float64 // EventTimeUpdate
	Duration float64 // EventLoadedMetadata
	Err      error   // EventError
}

// Reduce applies an output event to the session. Events without a current track are ignored.
func Reduce(s Session, ev Event, now time.Time) Session {
	if s.Track == nil {
		return s
	}

	switch ev.Kind {
	case EventPlay:
		s.Transport = Playing
		s.HasEverPlayed = true
		s.LastPausedAt = time.Time{}
		s.Advisory = ""
	case EventPause:
		s.Transport = Paused
		s.LastPausedAt = now
	case EventEnded:
		s.Transport = Ended
		s.Position = 0
		s.LastPausedAt = now
	case EventTimeUpdate:
		if ev.Position >= 0 {
			s.Position = ev.Position
		}
	case EventLoadedMetadata:
		if ev.Duration >= 0 {
			s.Duration = ev.Duration
		}
	case EventError:
		s.Transport = Paused
		s.LastPausedAt = now
		s.Advisory = AdvisoryUnsupported
	}
	return s
}
