package server

import (
	"encoding/json"
	"errors"
	"io"
	"math"
	"mime/multipart"
	"net/http"

	"kgicweb/logger"
	"kgicweb/repository"
	"kgicweb/storage"
)

const maxUploadMemory = 32 << 20

// uploadResponse 上传结果
type uploadResponse struct {
	Path            string `json:"path"`
	PublicURL       string `json:"publicUrl"`
	DurationSeconds *int   `json:"durationSeconds,omitempty"`
}

// formFile reads the multipart field "file".
func formFile(r *http.Request) (multipart.File, *multipart.FileHeader, bool) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, nil, false
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return nil, nil, false
	}
	return file, header, true
}

// UploadAudioHandler stores a podcast audio file.
func (h *Handler) UploadAudioHandler(w http.ResponseWriter, r *http.Request) {
	file, header, ok := formFile(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	plan, err := storage.PlanAudioUpload(header.Filename, header.Header.Get("Content-Type"), h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, storage.UserMessage(err))
		return
	}
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "Server is not configured for uploads")
		return
	}

	result, err := h.store.Upload(r.Context(), plan.Path, file, header.Size, plan.ContentType)
	if err != nil {
		logger.Error("[Upload] 上传音频失败", logger.String("filename", header.Filename), logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	resp := uploadResponse{Path: result.Path, PublicURL: result.PublicURL}
	if h.prober != nil {
		if _, err := file.Seek(0, io.SeekStart); err == nil {
			if d, err := h.prober.Probe(r.Context(), file); err == nil {
				secs := int(math.Round(d))
				resp.DurationSeconds = &secs
			} else {
				logger.Warn("[Upload] 无法读取音频时长", logger.String("path", result.Path), logger.ErrorField(err))
			}
		}
	}

	logger.Info("[Upload] 音频上传成功", logger.String("path", result.Path))
	writeJSON(w, http.StatusOK, resp)
}

// UploadCoverArtHandler stores a podcast cover image (JPG, PNG or WebP, at most 5MB).
func (h *Handler) UploadCoverArtHandler(w http.ResponseWriter, r *http.Request) {
	file, header, ok := formFile(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()

	plan, err := storage.PlanCoverArtUpload(header.Filename, header.Header.Get("Content-Type"), header.Size, h.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, storage.UserMessage(err))
		return
	}
	if h.store == nil {
		writeError(w, http.StatusInternalServerError, "Server is not configured for uploads")
		return
	}

	result, err := h.store.Upload(r.Context(), plan.Path, file, header.Size, plan.ContentType)
	if err != nil {
		logger.Error("[Upload] 上传封面失败", logger.String("filename", header.Filename), logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, uploadResponse{Path: result.Path, PublicURL: result.PublicURL})
}

// signURLRequest is the body of POST /api/podcasts/sign-url.
type signURLRequest struct {
	URL   string `json:"url"`
	Path  string `json:"path"`
	Fresh bool   `json:"fresh"`
}

// SignURLHandler exchanges a storage URL or object path for a time-limited URL.
func (h *Handler) SignURLHandler(w http.ResponseWriter, r *http.Request) {
	var req signURLRequest
	// 请求体无效时按空请求处理
	_ = json.NewDecoder(r.Body).Decode(&req)

	if h.store == nil {
		if req.URL == "" {
			writeError(w, http.StatusBadRequest, "No URL or path provided")
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"url": req.URL})
		return
	}

	objectPath, err := storage.ObjectPathFromInput(h.store.Bucket(), req.URL, req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unsupported URL or path")
		return
	}

	ctx := r.Context()
	if !req.Fresh && h.urls != nil {
		if cached, ok, err := h.urls.Get(ctx, objectPath); err != nil {
			logger.Debug("Signed URL cache unavailable", logger.ErrorField(err))
		} else if ok {
			writeJSON(w, http.StatusOK, map[string]interface{}{"url": cached})
			return
		}
	}

	expiry := h.cfg.SignedURLExpiry
	signed, err := h.store.SignedURL(ctx, objectPath, expiry)
	if err != nil {
		logger.Warn("Failed to sign URL", logger.String("path", objectPath), logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.urls != nil {
		if err := h.urls.Set(ctx, objectPath, signed, expiry); err != nil {
			logger.Debug("Failed to cache signed URL", logger.ErrorField(err))
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"url": signed})
}

// IncrementPlayHandler adds one play to a podcast.
func (h *Handler) IncrementPlayHandler(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID string `json:"id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "Missing id")
		return
	}

	ctx := r.Context()
	if h.guard != nil && !h.guard.Allow(ctx, r.Header.Get("X-Client-Session"), req.ID) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "deduplicated": true})
		return
	}

	count, err := h.content.IncrementPlayCount(ctx, req.ID)
	switch {
	case errors.Is(err, repository.ErrCounterUnavailable):
		logger.Error("Play counter is not provisioned", logger.ErrorField(err))
		writeJSON(w, http.StatusNotImplemented, map[string]interface{}{
			"error": "play_count column not found. Run migrations.",
			"code":  "COUNTER_MISSING",
		})
		return
	case errors.Is(err, repository.ErrNotFound):
		// 与原子自增语义一致：不存在的节目不计数，也不报错
		writeOK(w)
		return
	case err != nil:
		logger.Error("Failed to increment play count", logger.String("id", req.ID), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.hub.Broadcast(PlayCountUpdate{ID: req.ID, PlayCount: count})
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "playCount": count})
}
