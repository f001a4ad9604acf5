package playback

import (
	"time"

	"kgicweb/model"
)

// Transport is the transport state of the session.
type Transport int

const (
	Idle Transport = iota
	Playing
	Paused
	Ended
)

// String returns the transport name.
func (t Transport) String() string {
	switch t {
	case Idle:
		return "idle"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Ended:
		return "ended"
	default:
		return "unknown"
	}
}

// DefaultVolume is the volume of a fresh session.
const DefaultVolume = 70

// Track describes what to play. It is never mutated once handed to the coordinator.
type Track struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	AudioURL   string `json:"audioUrl"`
	ArtworkURL string `json:"artworkUrl,omitempty"`
}

// TrackFromPodcast builds a track from a podcast row. Artist falls back to KGIC.
func TrackFromPodcast(p *model.Podcast) Track {
	t := Track{ID: p.ID, Title: p.Title, Artist: "KGIC", AudioURL: p.AudioURL}
	if p.Artist != nil && *p.Artist != "" {
		t.Artist = *p.Artist
	}
	if p.ImageURL != nil {
		t.ArtworkURL = *p.ImageURL
	}
	return t
}

// Session is the process-wide playback state.
type Session struct {
	Track         *Track
	Transport     Transport
	Position      float64 // seconds
	Duration      float64 // seconds, 0 until metadata is known
	Volume        int
	HasEverPlayed bool
	// LastPausedAt is zero while playing and before the first pause or end.
	LastPausedAt time.Time
	// Advisory is a user-facing message after a playback failure.
	Advisory string
}

// HasTrack reports whether a track is current.
func (s Session) HasTrack() bool {
	return s.Track != nil
}

// ProgressPercent returns playback progress in [0, 100], or 0 while the duration is unknown.
func (s Session) ProgressPercent() float64 {
	if s.Duration <= 0 {
		return 0
	}
	p := s.Position / s.Duration * 100
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
