package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"kgicweb/core/auth"
	"kgicweb/logger"
	"kgicweb/model"
	"kgicweb/repository"
)

// SessionCookie 管理员会话 Cookie 名称
const SessionCookie = "kgic_session"

const signInPath = "/auth/sign-in"

type contextKey string

const claimsKey contextKey = "claims"

// ClaimsFromContext returns the admin session attached by requireAdmin.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*auth.Claims)
	return claims, ok
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, r *http.Request, token string, expires time.Time) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		Expires:  expires,
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// sessionClaims reads the session from the cookie, or a Bearer token.
func (h *Handler) sessionClaims(r *http.Request) (*auth.Claims, error) {
	if h.tokens == nil {
		return nil, auth.ErrInvalidToken
	}
	var token string
	if c, err := r.Cookie(SessionCookie); err == nil {
		token = c.Value
	} else if parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2); len(parts) == 2 && parts[0] == "Bearer" {
		token = parts[1]
	}
	if token == "" {
		return nil, auth.ErrInvalidToken
	}
	return h.tokens.ParseToken(token)
}

// LoginHandler checks email and password and sets the session cookie.
func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	if h.tokens == nil || h.users == nil {
		writeError(w, http.StatusInternalServerError, "Server is not configured for sign-in")
		return
	}

	var req model.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		logger.Error("[Login] 解析请求体失败", logger.ErrorField(err))
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if errs, ok := h.validate.Validate(&req); !ok {
		writeValidationError(w, errs)
		return
	}

	user, err := h.users.GetUserByEmail(r.Context(), req.Email)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		logger.Error("[Login] 查询用户失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}

	hash := ""
	if user != nil {
		hash = user.PasswordHash
	}
	if !auth.CheckPasswordHash(req.Password, hash) || user == nil {
		logger.Warn("[Login] 登录失败", logger.String("email", req.Email))
		writeError(w, http.StatusUnauthorized, "Invalid email or password")
		return
	}

	token, expires, err := h.tokens.GenerateToken(user.ID, user.Email)
	if err != nil {
		logger.Error("[Login] 生成Token失败", logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, "Internal server error")
		return
	}
	h.setSessionCookie(w, r, token, expires)

	logger.Info("[Login] 登录成功", logger.String("email", user.Email))
	writeJSON(w, http.StatusOK, map[string]interface{}{"ok": true, "user": user})
}

// LogoutHandler clears the session cookie.
func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeOK(w)
}

// RefreshHandler re-issues the session cookie once it is past half its
// lifetime and drops an invalid one. It always answers {ok:true}.
func (h *Handler) RefreshHandler(w http.ResponseWriter, r *http.Request) {
	claims, err := h.sessionClaims(r)
	if err != nil {
		if _, cerr := r.Cookie(SessionCookie); cerr == nil {
			clearSessionCookie(w)
		}
		writeOK(w)
		return
	}

	if h.tokens.NeedsRefresh(claims) {
		token, expires, err := h.tokens.GenerateToken(claims.UserID, claims.Email)
		if err != nil {
			logger.Warn("[Refresh] 生成Token失败", logger.ErrorField(err))
		} else {
			h.setSessionCookie(w, r, token, expires)
		}
	}
	writeOK(w)
}

// MeHandler returns the signed-in admin.
func (h *Handler) MeHandler(w http.ResponseWriter, r *http.Request) {
	claims, _ := ClaimsFromContext(r.Context())
	user, err := h.users.GetUserByID(r.Context(), claims.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		clearSessionCookie(w)
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, user)
}

// requireAdmin rejects requests without a valid admin session.
func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := h.sessionClaims(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		ctx := context.WithValue(r.Context(), claimsKey, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	}
}

// adminPageGuard redirects to the sign-in page unless a valid session is present.
func (h *Handler) adminPageGuard(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, err := h.sessionClaims(r); err != nil {
			target := signInPath + "?next=" + url.QueryEscape(r.URL.Path)
			http.Redirect(w, r, target, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}
