package storage

import (
	"errors"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// MaxCoverArtSize 封面图片大小上限 5MB
const MaxCoverArtSize = 5 * 1024 * 1024

var (
	ErrUnsupportedMedia  = errors.New("unsupported media format")
	ErrFileTooLarge      = errors.New("file too large")
	ErrNotConfigured     = errors.New("object storage is not configured")
	ErrInvalidObjectPath = errors.New("unsupported URL or path")
)

var (
	audioExts  = map[string]string{"mp3": "audio/mpeg", "m4a": "audio/mp4"}
	audioMimes = []string{"audio/mpeg", "audio/mp3", "audio/mp4", "audio/x-m4a", "audio/m4a", "application/octet-stream", ""}
	imageExts  = []string{"jpg", "jpeg", "png", "webp"}
	imageMimes = []string{"image/jpeg", "image/png", "image/webp"}
)

// ObjectUpload is a validated upload: where to put it and with which content type.
type ObjectUpload struct {
	Path        string
	ContentType string
}

func extension(filename string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
}

func objectName(prefix string, now time.Time, ext string) string {
	return fmt.Sprintf("public/%s/%s/%s.%s", prefix, now.UTC().Format("2006-01-02"), uuid.New().String(), ext)
}

// PlanAudioUpload validates an audio file and names its object
// public/audios/{date}/{uuid}.{ext}. A file without extension is stored as mp3.
func PlanAudioUpload(filename, contentType string, now time.Time) (ObjectUpload, error) {
	ext := extension(filename)
	if ext == "" {
		ext = "mp3"
	}
	defaultType, ok := audioExts[ext]
	if !ok || !lo.Contains(audioMimes, strings.ToLower(contentType)) {
		return ObjectUpload{}, fmt.Errorf("%w: Unsupported audio format. Please upload MP3 or M4A.", ErrUnsupportedMedia)
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = defaultType
	}
	return ObjectUpload{Path: objectName("audios", now, ext), ContentType: contentType}, nil
}

// PlanCoverArtUpload validates an image by extension, MIME type and size.
func PlanCoverArtUpload(filename, contentType string, size int64, now time.Time) (ObjectUpload, error) {
	ext := extension(filename)
	if !lo.Contains(imageExts, ext) || !lo.Contains(imageMimes, contentType) {
		return ObjectUpload{}, fmt.Errorf("%w: Unsupported image format. Please upload JPG, PNG, or WebP.", ErrUnsupportedMedia)
	}
	if size > MaxCoverArtSize {
		return ObjectUpload{}, fmt.Errorf("%w: File too large. Maximum size is 5MB.", ErrFileTooLarge)
	}
	return ObjectUpload{Path: objectName("cover-art", now, ext), ContentType: contentType}, nil
}

// ObjectPathFromInput extracts the object path inside bucket from either an
// explicit path or a public/signed object URL.
func ObjectPathFromInput(bucket, rawURL, objectPath string) (string, error) {
	if objectPath != "" {
		p := strings.TrimLeft(objectPath, "/")
		if p == "" {
			return "", ErrInvalidObjectPath
		}
		return p, nil
	}
	if rawURL == "" {
		return "", ErrInvalidObjectPath
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		return "", ErrInvalidObjectPath
	}
	parts := lo.Compact(strings.Split(u.Path, "/"))
	idx := lo.IndexOf(parts, bucket)
	if idx == -1 || idx == len(parts)-1 {
		return "", ErrInvalidObjectPath
	}
	return path.Join(parts[idx+1:]...), nil
}

// UserMessage strips the sentinel prefix and returns the text meant for the form.
func UserMessage(err error) string {
	msg := err.Error()
	for _, sentinel := range []error{ErrUnsupportedMedia, ErrFileTooLarge} {
		if errors.Is(err, sentinel) {
			return strings.TrimPrefix(msg, sentinel.Error()+": ")
		}
	}
	return msg
}
