package server

import (
	"context"
	"io"
	"time"

	"kgicweb/cache"
	"kgicweb/config"
	"kgicweb/core/audio"
	"kgicweb/core/auth"
	"kgicweb/core/validation"
	"kgicweb/model"
	"kgicweb/repository"
	"kgicweb/storage"
)

// BlobStore is the object storage behind uploads, signing and the public proxy.
type BlobStore interface {
	Bucket() string
	Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (*storage.UploadResult, error)
	SignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error)
	Open(ctx context.Context, objectPath string) (io.ReadCloser, *storage.ObjectInfo, error)
}

// UserStore looks up admin accounts.
type UserStore interface {
	GetUserByEmail(ctx context.Context, email string) (*model.AdminUser, error)
	GetUserByID(ctx context.Context, id uint) (*model.AdminUser, error)
}

// Deps 构造 Handler 所需的依赖。Store、Tokens、Prober 可以为 nil
type Deps struct {
	Config  *config.Config
	Content *repository.ContentRepository
	Users   UserStore
	Store   BlobStore
	URLs    *cache.SignedURLCache
	Guard   *cache.PlayGuard
	Tokens  *auth.TokenIssuer
	Prober  *audio.Prober
	Hub     *PlayHub
}

// Handler serves the site API.
type Handler struct {
	cfg      *config.Config
	content  *repository.ContentRepository
	users    UserStore
	store    BlobStore
	urls     *cache.SignedURLCache
	guard    *cache.PlayGuard
	tokens   *auth.TokenIssuer
	prober   *audio.Prober
	hub      *PlayHub
	validate *validation.Validator
	now      func() time.Time
}

func NewHandler(d Deps) *Handler {
	hub := d.Hub
	if hub == nil {
		hub = NewPlayHub()
	}
	return &Handler{
		cfg:      d.Config,
		content:  d.Content,
		users:    d.Users,
		store:    d.Store,
		urls:     d.URLs,
		guard:    d.Guard,
		tokens:   d.Tokens,
		prober:   d.Prober,
		hub:      hub,
		validate: validation.New(),
		now:      time.Now,
	}
}
