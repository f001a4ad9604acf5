package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"kgicweb/logger"
	"kgicweb/model"
	"kgicweb/repository"
)

const maxListLimit = 500

// parseLimit reads ?limit=, 0 means no limit.
func parseLimit(r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, false
	}
	return min(n, maxListLimit), true
}

func collectionFromVars(w http.ResponseWriter, r *http.Request) (model.Collection, bool) {
	c, err := model.ParseCollection(mux.Vars(r)["collection"])
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return "", false
	}
	return c, true
}

// ListContentHandler lists the published rows of a collection in site order.
func (h *Handler) ListContentHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}

	q := repository.PublicQuery(c)
	search := ""
	if c == model.CollectionBooks {
		if category := r.URL.Query().Get("category"); category != "" && category != "all" {
			q = q.Where("category", category)
		}
		search = strings.ToLower(strings.TrimSpace(r.URL.Query().Get("q")))
	}
	if search == "" {
		q.Limit = limit
	}

	rows, err := h.content.List(r.Context(), c, q)
	if err != nil {
		logger.Error("Failed to list content", logger.String("collection", string(c)), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if search != "" {
		rows = lo.Filter(rows, func(rec model.Record, _ int) bool {
			return matchesBook(rec.(*model.Book), search)
		})
		if limit > 0 && len(rows) > limit {
			rows = rows[:limit]
		}
	}
	writeJSON(w, http.StatusOK, rows)
}

// matchesBook 书名、作者、简介的不区分大小写匹配
func matchesBook(b *model.Book, q string) bool {
	fields := []string{b.Title, b.Author, lo.FromPtr(b.Description)}
	return lo.SomeBy(fields, func(s string) bool {
		return strings.Contains(strings.ToLower(s), q)
	})
}

// GetPrayerHandler returns one published prayer.
func (h *Handler) GetPrayerHandler(w http.ResponseWriter, r *http.Request) {
	rec, err := h.content.Get(r.Context(), model.CollectionPrayers, mux.Vars(r)["id"])
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Prayer not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if rec.(*model.Prayer).Status != model.StatusPublished {
		writeError(w, http.StatusNotFound, "Prayer not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AdminListHandler lists every row of a collection in dashboard order.
func (h *Handler) AdminListHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	limit, ok := parseLimit(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "Invalid limit")
		return
	}
	q := repository.AdminQuery(c)
	q.Limit = limit

	rows, err := h.content.List(r.Context(), c, q)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// AdminGetHandler returns one row regardless of status.
func (h *Handler) AdminGetHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	rec, err := h.content.Get(r.Context(), c, mux.Vars(r)["id"])
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AdminCreateHandler validates and inserts a new row. Client supplied ids and
// timestamps are ignored.
func (h *Handler) AdminCreateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	rec, err := model.NewRecord(c)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	*rec.Meta() = model.Base{}
	if p, ok := rec.(*model.Podcast); ok {
		p.PlayCount = 0
	}

	if errs, ok := h.validate.Validate(rec); !ok {
		writeValidationError(w, errs)
		return
	}
	if err := h.content.Insert(r.Context(), rec); err != nil {
		logger.Error("Failed to insert content", logger.String("collection", string(c)), logger.ErrorField(err))
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	logger.Info("Content created", logger.String("collection", string(c)), logger.String("id", rec.Meta().ID))
	writeJSON(w, http.StatusCreated, rec)
}

// AdminUpdateHandler applies the body onto the stored row, then validates and saves it.
func (h *Handler) AdminUpdateHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	rec, err := h.content.Get(ctx, c, mux.Vars(r)["id"])
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	meta := *rec.Meta()
	var playCount int64
	if p, ok := rec.(*model.Podcast); ok {
		playCount = p.PlayCount
	}
	if err := json.NewDecoder(r.Body).Decode(rec); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	*rec.Meta() = meta
	if p, ok := rec.(*model.Podcast); ok {
		p.PlayCount = playCount
	}

	if errs, ok := h.validate.Validate(rec); !ok {
		writeValidationError(w, errs)
		return
	}
	if err := h.content.Update(ctx, rec); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// AdminDeleteHandler removes one row.
func (h *Handler) AdminDeleteHandler(w http.ResponseWriter, r *http.Request) {
	c, ok := collectionFromVars(w, r)
	if !ok {
		return
	}
	id := mux.Vars(r)["id"]
	err := h.content.Delete(r.Context(), c, id)
	if errors.Is(err, repository.ErrNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	logger.Info("Content deleted", logger.String("collection", string(c)), logger.String("id", id))
	writeOK(w)
}
