package server

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"kgicweb/logger"
)

// Routes builds the router for the whole site.
func (h *Handler) Routes() *mux.Router {
	router := mux.NewRouter()
	router.Use(corsMiddleware, requestLogger)

	// 播客上传、签名与播放计数
	router.HandleFunc("/api/podcasts/upload", h.requireAdmin(h.UploadAudioHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/podcasts/cover-art", h.requireAdmin(h.UploadCoverArtHandler)).Methods(http.MethodPost)
	router.HandleFunc("/api/podcasts/sign-url", h.SignURLHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/podcasts/increment-play", h.IncrementPlayHandler).Methods(http.MethodPost)

	// 认证
	router.HandleFunc("/api/auth/login", h.LoginHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/logout", h.LogoutHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/refresh", h.RefreshHandler).Methods(http.MethodPost)
	router.HandleFunc("/api/auth/me", h.requireAdmin(h.MeHandler)).Methods(http.MethodGet)

	// 后台内容管理
	admin := router.PathPrefix("/api/admin").Subrouter()
	admin.HandleFunc("/{collection}", h.requireAdmin(h.AdminListHandler)).Methods(http.MethodGet)
	admin.HandleFunc("/{collection}", h.requireAdmin(h.AdminCreateHandler)).Methods(http.MethodPost)
	admin.HandleFunc("/{collection}/{id}", h.requireAdmin(h.AdminGetHandler)).Methods(http.MethodGet)
	admin.HandleFunc("/{collection}/{id}", h.requireAdmin(h.AdminUpdateHandler)).Methods(http.MethodPut)
	admin.HandleFunc("/{collection}/{id}", h.requireAdmin(h.AdminDeleteHandler)).Methods(http.MethodDelete)

	// 公开内容
	router.HandleFunc("/api/prayers/{id}", h.GetPrayerHandler).Methods(http.MethodGet)
	router.HandleFunc("/api/{collection:prayers|podcasts|announcements|ministries|groups|books}", h.ListContentHandler).Methods(http.MethodGet)

	router.HandleFunc("/ws/plays", h.hub.ServeWS)

	router.PathPrefix(publicObjectRoute).Handler(NewStorageProxy(h.cfg, h.store)).Methods(http.MethodGet, http.MethodHead)

	site := http.FileServer(http.Dir(h.cfg.WebAppDir))
	router.PathPrefix("/admin").Handler(h.adminPageGuard(site))
	router.PathPrefix("/").Handler(site)

	return router
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS, HEAD")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, Range, X-Client-Session")
		w.Header().Set("Access-Control-Expose-Headers", "Content-Length, Content-Range")
		w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Unwrap exposes the wrapped writer to http.ResponseController.
func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/ws/plays" {
			next.ServeHTTP(w, r)
			return
		}
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		logger.Debug("HTTP request",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.Int("status", rec.status),
			logger.Duration("took", time.Since(start)))
	})
}
