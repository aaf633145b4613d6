package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/campuslife/apiserver/internal/cache"
	"github.com/campuslife/apiserver/internal/services"
	"github.com/campuslife/apiserver/types"
	"github.com/go-chi/chi/v5"
)

// PostHandler provides HTTP handlers for posts.
type PostHandler struct {
	postService *services.PostService
	cache       *cache.Cache
	logger      *slog.Logger
}

// NewPostHandler constructs a handler with the provided dependencies.
func NewPostHandler(postService *services.PostService, responseCache *cache.Cache, logger *slog.Logger) *PostHandler {
	return &PostHandler{
		postService: postService,
		cache:       responseCache,
		logger:      logger,
	}
}

// PostRouter registers post routes on the given router. Every route requires
// an authenticated principal.
func PostRouter(r chi.Router, handler *PostHandler, authMiddleware func(http.Handler) http.Handler) {
	r.Use(authMiddleware)
	r.Get("/", handler.ListPosts)
	r.Post("/", handler.CreatePost)
	r.Get("/{postID}", handler.GetPost)
	r.Post("/{postID}/like", handler.ToggleLike)
	r.Post("/{postID}/view", handler.RegisterView)
	r.Put("/{postID}", handler.UpdatePost)
	r.Delete("/{postID}", handler.DeletePost)
}

// PostListResponse is the list payload.
type PostListResponse struct {
	Posts []types.PostView `json:"posts"`
}

type createPostRequest struct {
	Caption       string `json:"caption"`
	MediaPublicID string `json:"media_public_id"`
	MediaURL      string `json:"media_url"`
	MediaType     string `json:"media_type"`
}

type updatePostRequest struct {
	Caption       *string `json:"caption"`
	MediaPublicID *string `json:"media_public_id"`
	MediaURL      *string `json:"media_url"`
	MediaType     *string `json:"media_type"`
}

func (h *PostHandler) CreatePost(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	var req createPostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	view, err := h.postService.Create(r.Context(), principal, services.CreatePostInput{
		Caption:       req.Caption,
		MediaPublicID: req.MediaPublicID,
		MediaURL:      req.MediaURL,
		MediaType:     req.MediaType,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, view)
}

// ListPosts serves the post feed through the response cache. Entries are
// keyed per principal because liked_by_me/viewed_by_me differ per caller.
func (h *PostHandler) ListPosts(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	cacheKey := fmt.Sprintf("posts:%d", principal.ID)
	if cached, ok := h.cache.Get(cacheKey); ok {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(cached)
		return
	}

	views, err := h.postService.List(r.Context(), principal)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	payload, err := json.Marshal(PostListResponse{Posts: views})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	h.cache.Set(cacheKey, payload)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(payload)
}

func (h *PostHandler) GetPost(w http.ResponseWriter, r *http.Request) {
	h.servePost(w, r, h.postService.Get)
}

func (h *PostHandler) ToggleLike(w http.ResponseWriter, r *http.Request) {
	h.servePost(w, r, h.postService.ToggleLike)
}

func (h *PostHandler) RegisterView(w http.ResponseWriter, r *http.Request) {
	h.servePost(w, r, h.postService.RegisterView)
}

func (h *PostHandler) UpdatePost(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updatePostRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	view, err := h.postService.Update(r.Context(), principal, postID, services.UpdatePostInput{
		Caption:       req.Caption,
		MediaPublicID: req.MediaPublicID,
		MediaURL:      req.MediaURL,
		MediaType:     req.MediaType,
	})
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func (h *PostHandler) DeletePost(w http.ResponseWriter, r *http.Request) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.postService.Delete(r.Context(), principal, postID); err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": postID})
}

func (h *PostHandler) servePost(
	w http.ResponseWriter,
	r *http.Request,
	operation func(ctx context.Context, principal types.Principal, postID int) (types.PostView, error),
) {
	principal, err := PrincipalFromContext(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	postID, err := parsePostID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	view, err := operation(r.Context(), principal, postID)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, view)
}

func parsePostID(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "postID")
	id, err := strconv.Atoi(raw)
	if err != nil || id < 1 {
		return 0, errors.New("invalid post id")
	}
	return id, nil
}
