package handlers

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/campuslife/apiserver/internal/storage"
	"github.com/campuslife/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// uploads larger than this are rejected before reading the body.
const maxUploadBytes = 32 << 20

// MediaHandler serves media upload, listing and deletion backed by object
// storage. Uploaded objects are scoped per principal so one user cannot
// delete another's media.
type MediaHandler struct {
	media  *storage.MediaStore
	logger *slog.Logger
}

func NewMediaHandler(media *storage.MediaStore, logger *slog.Logger) *MediaHandler {
	return &MediaHandler{
		media:  media,
		logger: logger,
	}
}

// MediaRouter registers media routes. The delete route uses a wildcard
// because public ids contain slashes.
func MediaRouter(r chi.Router, handler *MediaHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Post("/upload", handler.Upload)
	r.Get("/", handler.List)
	r.Delete("/*", handler.Delete)
}

// MediaListResponse is the list payload.
type MediaListResponse struct {
	Media []storage.MediaObject `json:"media"`
}

func (h *MediaHandler) Upload(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	object, err := h.media.Upload(
		r.Context(),
		ownerScope(principal),
		file,
		header.Size,
		header.Header.Get("Content-Type"),
		r.FormValue("resource_type"),
	)
	if err != nil {
		h.logger.Error("media upload failed", "error", err)
		writeError(w, http.StatusInternalServerError, "upload failed")
		return
	}

	writeJSON(w, http.StatusCreated, object)
}

func (h *MediaHandler) List(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	objects, err := h.media.List(r.Context(), ownerScope(principal))
	if err != nil {
		h.logger.Error("media list failed", "error", err)
		writeError(w, http.StatusInternalServerError, "list failed")
		return
	}
	if objects == nil {
		objects = []storage.MediaObject{}
	}

	writeJSON(w, http.StatusOK, MediaListResponse{Media: objects})
}

func (h *MediaHandler) Delete(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	publicID := chi.URLParam(r, "*")
	if publicID == "" {
		writeError(w, http.StatusBadRequest, "public id is required")
		return
	}
	if !principal.IsAdmin() && !strings.Contains(publicID, "/"+ownerScope(principal)+"/") {
		writeError(w, http.StatusForbidden, "Forbidden")
		return
	}

	if err := h.media.Destroy(r.Context(), publicID); err != nil {
		h.logger.Error("media delete failed", "error", err, "public_id", publicID)
		writeError(w, http.StatusInternalServerError, "delete failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"deleted": publicID})
}

// ownerScope prefers the numeric id and falls back to the email for
// principals that were never persisted.
func ownerScope(principal types.Principal) string {
	if principal.ID > 0 {
		return strconv.Itoa(principal.ID)
	}
	return principal.Email
}
