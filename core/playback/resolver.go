package playback

import (
	"context"
	"net/url"
	"strings"
	"time"

	"kgicweb/logger"
)

const (
	storageSegment = "/storage/v1/object/"
	signSegment    = "/storage/v1/object/sign/"
)

// Query parameters that mark a URL as already signed.
var tokenParams = []string{"token", "X-Amz-Signature"}

// Signer exchanges a storage object URL for a time-limited one.
// fresh bypasses any server-side cache of previously signed URLs.
type Signer interface {
	SignURL(ctx context.Context, rawURL string, fresh bool) (string, error)
}

// Resolver turns a track's audio URL into one the output device can fetch.
// It never fails: every error degrades to the input URL.
type Resolver struct {
	signer  Signer
	timeout time.Duration
}

// NewResolver creates a resolver. A nil signer makes every URL pass through.
func NewResolver(signer Signer) *Resolver {
	return &Resolver{signer: signer, timeout: 10 * time.Second}
}

// IsStorageURL reports whether the URL points at a hosted storage object.
func IsStorageURL(rawURL string) bool {
	if u, err := url.Parse(rawURL); err == nil && u.Scheme != "" {
		return strings.Contains(u.Path, storageSegment)
	}
	return strings.Contains(rawURL, storageSegment)
}

// IsSignedURL reports whether the URL already carries a signature.
func IsSignedURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" {
		if strings.Contains(rawURL, signSegment) {
			return true
		}
		for _, p := range tokenParams {
			if strings.Contains(rawURL, p+"=") {
				return true
			}
		}
		return false
	}

	if strings.Contains(u.Path, signSegment) {
		return true
	}
	q := u.Query()
	for _, p := range tokenParams {
		if q.Has(p) {
			return true
		}
	}
	return false
}

// Resolve returns a playable URL for rawURL.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	return r.resolve(ctx, rawURL, false)
}

// ForceResolve is Resolve without the server-side signed URL cache.
func (r *Resolver) ForceResolve(ctx context.Context, rawURL string) string {
	return r.resolve(ctx, rawURL, true)
}

func (r *Resolver) resolve(ctx context.Context, rawURL string, fresh bool) string {
	if rawURL == "" || !IsStorageURL(rawURL) || IsSignedURL(rawURL) || r.signer == nil {
		return rawURL
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	signed, err := r.signer.SignURL(ctx, rawURL, fresh)
	if err != nil {
		logger.Debug("Signing failed, using original URL",
			logger.String("url", rawURL),
			logger.ErrorField(err))
		return rawURL
	}
	if signed == "" {
		return rawURL
	}
	return signed
}
