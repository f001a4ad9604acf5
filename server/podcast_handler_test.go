package server

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"kgicweb/model"
	"kgicweb/repository"
)

// uploadRequest 构造只含 file 字段的 multipart 请求
func uploadRequest(t *testing.T, target, filename, contentType string, data []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, target, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestUploadRequiresAdmin(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(uploadRequest(t, "/api/podcasts/upload", "sermon.mp3", "audio/mpeg", []byte("ID3")))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Unauthorized", decodeBody(t, rec)["error"])
}

func TestUploadAudio(t *testing.T) {
	env := newTestEnv(t)

	req := uploadRequest(t, "/api/podcasts/upload", "sermon.mp3", "audio/mpeg", []byte("ID3 audio bytes"))
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(req)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	body := decodeBody(t, rec)
	path := body["path"].(string)
	assert.True(t, strings.HasPrefix(path, "public/audios/"), path)
	assert.True(t, strings.HasSuffix(path, ".mp3"), path)
	assert.Equal(t, "http://localhost:8080/storage/v1/object/public/podcasts/"+path, body["publicUrl"])
	assert.NotContains(t, body, "durationSeconds")

	obj := env.store.objects[path]
	assert.Equal(t, "ID3 audio bytes", obj.body)
	assert.Equal(t, "audio/mpeg", obj.contentType)
}

func TestUploadAudioErrors(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)

	t.Run("no file", func(t *testing.T) {
		req := jsonRequest(t, http.MethodPost, "/api/podcasts/upload", map[string]string{})
		req.AddCookie(cookie)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "No file provided", decodeBody(t, rec)["error"])
	})

	t.Run("unsupported format", func(t *testing.T) {
		req := uploadRequest(t, "/api/podcasts/upload", "sermon.wav", "audio/wav", []byte("RIFF"))
		req.AddCookie(cookie)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "Unsupported audio format. Please upload MP3 or M4A.", decodeBody(t, rec)["error"])
	})

	t.Run("storage failure", func(t *testing.T) {
		env.store.uploadErr = errors.New("bucket is read-only")
		defer func() { env.store.uploadErr = nil }()

		req := uploadRequest(t, "/api/podcasts/upload", "sermon.m4a", "audio/mp4", []byte("ftyp"))
		req.AddCookie(cookie)
		rec := env.do(req)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, "bucket is read-only", decodeBody(t, rec)["error"])
	})
}

func TestUploadWithoutStorage(t *testing.T) {
	env := newTestEnv(t, withoutStore)

	req := uploadRequest(t, "/api/podcasts/upload", "sermon.mp3", "audio/mpeg", []byte("ID3"))
	req.AddCookie(env.sessionCookie(t))
	rec := env.do(req)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Server is not configured for uploads", decodeBody(t, rec)["error"])
}

func TestUploadCoverArt(t *testing.T) {
	env := newTestEnv(t)
	cookie := env.sessionCookie(t)

	cases := []struct {
		name        string
		filename    string
		contentType string
		size        int
		wantStatus  int
		wantError   string
	}{
		{"png", "cover.png", "image/png", 1024, http.StatusOK, ""},
		{"gif rejected", "cover.gif", "image/gif", 1024, http.StatusBadRequest, "Unsupported image format. Please upload JPG, PNG, or WebP."},
		{"mime mismatch", "cover.jpg", "text/plain", 1024, http.StatusBadRequest, "Unsupported image format. Please upload JPG, PNG, or WebP."},
		{"too large", "cover.webp", "image/webp", 5*1024*1024 + 1, http.StatusBadRequest, "File too large. Maximum size is 5MB."},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := uploadRequest(t, "/api/podcasts/cover-art", tc.filename, tc.contentType, bytes.Repeat([]byte{0xff}, tc.size))
			req.AddCookie(cookie)
			rec := env.do(req)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			body := decodeBody(t, rec)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, body["error"])
				return
			}
			assert.True(t, strings.HasPrefix(body["path"].(string), "public/cover-art/"))
		})
	}
}

func TestSignURL(t *testing.T) {
	env := newTestEnv(t)
	const objectPath = "public/audios/2025-01-01/a.mp3"
	publicURL := "https://kgic.example.org/storage/v1/object/public/podcasts/" + objectPath

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"url": publicURL}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	first := decodeBody(t, rec)["url"]
	assert.Equal(t, "https://signed.example.org/"+objectPath+"?n=1", first)

	// 第二次命中缓存
	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"path": objectPath}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, first, decodeBody(t, rec)["url"])
	assert.Equal(t, 1, env.store.signs())

	// fresh 跳过缓存
	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]interface{}{"path": objectPath, "fresh": true}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://signed.example.org/"+objectPath+"?n=2", decodeBody(t, rec)["url"])
	assert.Equal(t, 2, env.store.signs())
}

func TestSignURLErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"url": "https://cdn.example.org/other/a.mp3"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported URL or path", decodeBody(t, rec)["error"])

	rec = env.do(httptest.NewRequest(http.MethodPost, "/api/podcasts/sign-url", strings.NewReader("not json")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Unsupported URL or path", decodeBody(t, rec)["error"])

	env.store.signErr = errors.New("Object not found")
	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"path": "public/audios/missing.mp3"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Object not found", decodeBody(t, rec)["error"])
}

func TestSignURLWithoutStorage(t *testing.T) {
	env := newTestEnv(t, withoutStore)

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"url": "https://cdn.example.org/a.mp3"}))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.example.org/a.mp3", decodeBody(t, rec)["url"])

	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/sign-url", map[string]string{"path": "public/a.mp3"}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No URL or path provided", decodeBody(t, rec)["error"])
}

func TestIncrementPlay(t *testing.T) {
	env := newTestEnv(t)
	p := &model.Podcast{Title: "Sunday", AudioURL: "https://kgic.example.org/a.mp3", Status: model.StatusPublished}
	env.insert(t, p)

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/increment-play", map[string]string{"id": p.ID}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["ok"])
	assert.EqualValues(t, 1, body["playCount"])

	stored, err := env.content.Get(context.Background(), model.CollectionPodcasts, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.(*model.Podcast).PlayCount)
}

func TestIncrementPlayDeduplicatesSession(t *testing.T) {
	env := newTestEnv(t)
	p := &model.Podcast{Title: "Sunday", AudioURL: "https://kgic.example.org/a.mp3", Status: model.StatusPublished}
	env.insert(t, p)

	send := func() map[string]interface{} {
		req := jsonRequest(t, http.MethodPost, "/api/podcasts/increment-play", map[string]string{"id": p.ID})
		req.Header.Set("X-Client-Session", "session-1")
		rec := env.do(req)
		require.Equal(t, http.StatusOK, rec.Code)
		return decodeBody(t, rec)
	}

	assert.EqualValues(t, 1, send()["playCount"])
	second := send()
	assert.Equal(t, true, second["deduplicated"])

	stored, err := env.content.Get(context.Background(), model.CollectionPodcasts, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 1, stored.(*model.Podcast).PlayCount)
}

func TestIncrementPlayErrors(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodPost, "/api/podcasts/increment-play", strings.NewReader("{")))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid request body", decodeBody(t, rec)["error"])

	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/increment-play", map[string]string{}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Missing id", decodeBody(t, rec)["error"])

	rec = env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/increment-play", map[string]string{"id": "missing"}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, map[string]interface{}{"ok": true}, decodeBody(t, rec))
}

func TestIncrementPlayCounterMissing(t *testing.T) {
	// 未建表的数据库
	conn, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	conn.SetMaxOpenConns(1)
	t.Cleanup(func() { conn.Close() })

	env := newTestEnv(t, func(d *Deps) { d.Content = repository.NewContentRepository(conn) })

	rec := env.do(jsonRequest(t, http.MethodPost, "/api/podcasts/increment-play", map[string]string{"id": "p1"}))
	assert.Equal(t, http.StatusNotImplemented, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "COUNTER_MISSING", body["code"])
	assert.Equal(t, "play_count column not found. Run migrations.", body["error"])
}
