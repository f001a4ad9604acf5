package playback

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"kgicweb/model"
)

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		pos, dur float64
		want     float64
	}{
		{0, 0, 0},
		{30, 0, 0},
		{30, -5, 0},
		{30, 120, 25},
		{120, 120, 100},
		{500, 120, 100},
		{-3, 120, 0},
	}
	for _, tt := range tests {
		s := Session{Position: tt.pos, Duration: tt.dur}
		got := s.ProgressPercent()
		assert.Equal(t, tt.want, got, "pos=%v dur=%v", tt.pos, tt.dur)
		assert.GreaterOrEqual(t, got, 0.0)
		assert.LessOrEqual(t, got, 100.0)
	}
}

func TestTrackFromPodcast(t *testing.T) {
	img := "https://cdn.example.com/cover.jpg"
	p := &model.Podcast{Title: "Sunday", AudioURL: "https://cdn.example.com/s.mp3", ImageURL: &img}
	p.ID = "pod-1"

	tr := TrackFromPodcast(p)
	assert.Equal(t, Track{ID: "pod-1", Title: "Sunday", Artist: "KGIC", AudioURL: p.AudioURL, ArtworkURL: img}, tr)

	artist := "Pastor Kim"
	p.Artist = &artist
	assert.Equal(t, "Pastor Kim", TrackFromPodcast(p).Artist)
}

func TestMediaType(t *testing.T) {
	assert.Equal(t, "audio/mpeg", MediaType("https://cdn.example.com/a.MP3?x=1"))
	assert.Equal(t, "audio/mp4", MediaType("/local/a.m4a"))
	assert.Equal(t, "audio/ogg", MediaType("a.opus"))
	assert.Empty(t, MediaType("https://cdn.example.com/stream"))
}
