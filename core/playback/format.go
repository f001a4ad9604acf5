package playback

import (
	"errors"
	"net/url"
	"path"
	"strings"
)

var (
	ErrPlaybackUnsupported = errors.New("playback unsupported")
	ErrEmptySource         = errors.New("track has no audio source")
)

// User-facing advisories stored in Session.Advisory.
const (
	AdvisoryUnsupported = "This audio format isn't supported on this device. Please use Download to listen."
	AdvisoryStartFailed = "Playback could not start. Please use Download to listen."
)

var mediaTypes = map[string]string{
	"mp3":  "audio/mpeg",
	"m4a":  "audio/mp4",
	"mp4":  "audio/mp4",
	"ogg":  "audio/ogg",
	"oga":  "audio/ogg",
	"opus": "audio/ogg",
}

// MediaType guesses the MIME type from the URL's file extension. Unknown
// extensions yield "".
func MediaType(rawURL string) string {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), "."))
	return mediaTypes[ext]
}
