package server

import (
	"context"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"kgicweb/config"
	"kgicweb/logger"
	"kgicweb/storage"
)

const publicObjectRoute = storage.PublicPathPrefix

// StorageProxy 处理 /storage/v1/object/public/{bucket}/{path} 的对象读取
type StorageProxy struct {
	cfg   *config.Config
	store BlobStore
}

// NewStorageProxy 创建 StorageProxy 实例
func NewStorageProxy(cfg *config.Config, store BlobStore) *StorageProxy {
	return &StorageProxy{cfg: cfg, store: store}
}

// ServeHTTP 实现 http.Handler 接口
func (h *StorageProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// 未开启公开读取时，客户端必须先获取签名链接
	if !h.cfg.StoragePublicRead {
		writeError(w, http.StatusForbidden, "Public read is disabled. Request a signed URL.")
		return
	}
	if h.store == nil {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, publicObjectRoute)
	bucket, objectPath, ok := strings.Cut(rest, "/")
	if !ok || bucket != h.store.Bucket() || objectPath == "" || strings.Contains(objectPath, "..") {
		writeError(w, http.StatusNotFound, "File not found")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Minute)
	defer cancel()

	object, info, err := h.store.Open(ctx, objectPath)
	if err != nil {
		if storage.IsNotFound(err) {
			writeError(w, http.StatusNotFound, "File not found")
			return
		}
		logger.Error("Error opening object", logger.String("path", objectPath), logger.ErrorField(err))
		writeError(w, http.StatusBadGateway, "Storage unavailable")
		return
	}
	defer object.Close()

	w.Header().Set("Content-Type", contentTypeOf(objectPath, info.ContentType))
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if info.ETag != "" {
		w.Header().Set("ETag", `"`+info.ETag+`"`)
	}

	// 支持 Range 请求，播放器拖动进度时需要
	if rs, ok := object.(io.ReadSeeker); ok {
		http.ServeContent(w, r, path.Base(objectPath), info.LastModified, rs)
		return
	}

	w.Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
	if r.Method == http.MethodHead {
		return
	}
	if _, err := io.Copy(w, object); err != nil {
		logger.Error("Error serving file from MinIO", logger.ErrorField(err))
	}
}

// contentTypeOf 优先使用存储的类型，否则按扩展名推断
func contentTypeOf(objectPath, stored string) string {
	if stored != "" && stored != "application/octet-stream" {
		return stored
	}
	switch strings.ToLower(path.Ext(objectPath)) {
	case ".mp3":
		return "audio/mpeg"
	case ".m4a":
		return "audio/mp4"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}
