package server

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/minio/minio-go/v7"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"kgicweb/cache"
	"kgicweb/config"
	"kgicweb/core/auth"
	"kgicweb/db"
	"kgicweb/model"
	"kgicweb/repository"
	"kgicweb/storage"
)

const (
	testBucket = "podcasts"
	testSecret = "0123456789abcdef0123456789abcdef"
)

type fakeObject struct {
	body        string
	contentType string
}

// fakeStore 内存对象存储
type fakeStore struct {
	mu        sync.Mutex
	objects   map[string]fakeObject
	signCount int
	signErr   error
	uploadErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string]fakeObject)}
}

func (s *fakeStore) Bucket() string { return testBucket }

func (s *fakeStore) Upload(ctx context.Context, objectPath string, r io.Reader, size int64, contentType string) (*storage.UploadResult, error) {
	if s.uploadErr != nil {
		return nil, s.uploadErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.objects[objectPath] = fakeObject{body: string(data), contentType: contentType}
	s.mu.Unlock()
	return &storage.UploadResult{
		Path:      objectPath,
		PublicURL: "http://localhost:8080" + storage.PublicPathPrefix + testBucket + "/" + objectPath,
	}, nil
}

func (s *fakeStore) SignedURL(ctx context.Context, objectPath string, expiry time.Duration) (string, error) {
	if s.signErr != nil {
		return "", s.signErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.signCount++
	return fmt.Sprintf("https://signed.example.org/%s?n=%d", objectPath, s.signCount), nil
}

type readSeekNopCloser struct {
	*strings.Reader
}

func (readSeekNopCloser) Close() error { return nil }

func (s *fakeStore) Open(ctx context.Context, objectPath string) (io.ReadCloser, *storage.ObjectInfo, error) {
	s.mu.Lock()
	obj, ok := s.objects[objectPath]
	s.mu.Unlock()
	if !ok {
		return nil, nil, minio.ErrorResponse{Code: "NoSuchKey", Message: "The specified key does not exist."}
	}
	return readSeekNopCloser{strings.NewReader(obj.body)}, &storage.ObjectInfo{
		Key:          objectPath,
		Size:         int64(len(obj.body)),
		ContentType:  obj.contentType,
		ETag:         "abc123",
		LastModified: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}, nil
}

func (s *fakeStore) signs() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.signCount
}

type fakeUsers struct {
	users []*model.AdminUser
}

func (f *fakeUsers) GetUserByEmail(ctx context.Context, email string) (*model.AdminUser, error) {
	for _, u := range f.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeUsers) GetUserByID(ctx context.Context, id uint) (*model.AdminUser, error) {
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

// testEnv 一个完整的 Handler 及其依赖
type testEnv struct {
	h       *Handler
	router  http.Handler
	content *repository.ContentRepository
	store   *fakeStore
	tokens  *auth.TokenIssuer
	redis   *miniredis.Miniredis
	admin   *model.AdminUser
}

func newTestEnv(t *testing.T, opts ...func(*Deps)) *testEnv {
	t.Helper()

	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })
	require.NoError(t, db.InitSchema(context.Background(), conn))

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	tokens, err := auth.NewTokenIssuer(testSecret, time.Hour)
	require.NoError(t, err)

	hash, err := auth.HashPassword("correct horse")
	require.NoError(t, err)
	admin := &model.AdminUser{ID: 7, Email: "admin@kgic.org", PasswordHash: hash, DisplayName: "Admin"}

	env := &testEnv{
		content: repository.NewContentRepository(conn),
		store:   newFakeStore(),
		tokens:  tokens,
		redis:   mr,
		admin:   admin,
	}

	deps := Deps{
		Config: &config.Config{
			StoragePublicRead: true,
			SignedURLExpiry:   time.Hour,
			WebAppDir:         t.TempDir(),
		},
		Content: env.content,
		Users:   &fakeUsers{users: []*model.AdminUser{admin}},
		Store:   env.store,
		URLs:    cache.NewSignedURLCache(client),
		Guard:   cache.NewPlayGuard(client),
		Tokens:  tokens,
	}
	for _, opt := range opts {
		opt(&deps)
	}

	env.h = NewHandler(deps)
	env.router = env.h.Routes()
	return env
}

func withoutStore(d *Deps) { d.Store = nil }

// sessionCookie 返回已登录管理员的 Cookie
func (e *testEnv) sessionCookie(t *testing.T) *http.Cookie {
	t.Helper()
	token, _, err := e.tokens.GenerateToken(e.admin.ID, e.admin.Email)
	require.NoError(t, err)
	return &http.Cookie{Name: SessionCookie, Value: token}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func jsonRequest(t *testing.T, method, target string, body interface{}) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }

func (e *testEnv) insert(t *testing.T, rec model.Record) {
	t.Helper()
	require.NoError(t, e.content.Insert(context.Background(), rec))
}
