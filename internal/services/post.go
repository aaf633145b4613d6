package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/campuslife/apiserver/internal/apperr"
	"github.com/campuslife/apiserver/internal/events"
	"github.com/campuslife/apiserver/internal/rules"
	"github.com/campuslife/apiserver/internal/store"
	"github.com/campuslife/apiserver/types"
)

// PostRepository defines persistence operations for posts.
type PostRepository interface {
	List(ctx context.Context) ([]types.Post, error)
	Get(ctx context.Context, id int) (types.Post, error)
	Create(ctx context.Context, post types.Post) (types.Post, error)
	UpdateContent(ctx context.Context, id int, patch store.PostContentPatch) (types.Post, error)
	UpdateLikedBy(ctx context.Context, id int, ids []int) (types.Post, error)
	UpdateViewedBy(ctx context.Context, id int, ids []int) (types.Post, error)
	Delete(ctx context.Context, id int) error
}

// MediaDestroyer removes objects from the external media store.
type MediaDestroyer interface {
	Destroy(ctx context.Context, publicID string) error
}

// ResponseCache is the read-through cache invalidated on every post mutation.
type ResponseCache interface {
	InvalidateAll()
}

// PostCounter records created posts for observability.
type PostCounter interface {
	IncPostsCreated()
}

// CreatePostInput is the create payload after transport decoding.
type CreatePostInput struct {
	Caption       string
	MediaPublicID string
	MediaURL      string
	MediaType     string
}

// UpdatePostInput is a partial patch; nil fields were absent from the request.
type UpdatePostInput struct {
	Caption       *string
	MediaPublicID *string
	MediaURL      *string
	MediaType     *string
}

// PostService orchestrates the post lifecycle against the rules engine, the
// post store and the external media store.
type PostService struct {
	repo      PostRepository
	media     MediaDestroyer
	cache     ResponseCache
	counter   PostCounter
	publisher *events.Publisher
	logger    *slog.Logger
}

func NewPostService(
	repo PostRepository,
	media MediaDestroyer,
	cache ResponseCache,
	counter PostCounter,
	publisher *events.Publisher,
	logger *slog.Logger,
) *PostService {
	return &PostService{
		repo:      repo,
		media:     media,
		cache:     cache,
		counter:   counter,
		publisher: publisher,
		logger:    logger,
	}
}

// Create persists a new post with the author snapshotted from the principal.
// The snapshot never updates, even if the profile changes later.
func (s *PostService) Create(ctx context.Context, principal types.Principal, input CreatePostInput) (types.PostView, error) {
	validation := rules.ValidateCreate(input.MediaPublicID, input.MediaURL)
	if !validation.OK {
		return types.PostView{}, apperr.Validation(validation.Error)
	}

	authorName := principal.Name
	if authorName == "" {
		authorName = principal.Email
	}

	post := types.Post{
		Caption: rules.NormalizeCaption(input.Caption),
		Author: types.PostAuthor{
			ID:    principal.ID,
			Name:  authorName,
			Email: principal.Email,
		},
		Media: types.PostMedia{
			PublicID: input.MediaPublicID,
			URL:      input.MediaURL,
			Type:     mediaTypeOrDefault(input.MediaType, types.MediaTypeImage),
		},
		LikedBy:  []int{},
		ViewedBy: []int{},
	}

	created, err := s.repo.Create(ctx, post)
	if err != nil {
		return types.PostView{}, apperr.Dependency("create post", err)
	}

	s.counter.IncPostsCreated()
	s.cache.InvalidateAll()
	s.publisher.Emit(ctx, events.TopicPosts, events.PostCreated, principal.ID, created.ID)
	s.logger.InfoContext(ctx, "post_created", "post_id", created.ID, "author_id", principal.ID)

	return created.View(principal.ID), nil
}

// List returns all posts, newest first, annotated for the principal.
// Full scan; fine at this scale.
func (s *PostService) List(ctx context.Context, principal types.Principal) ([]types.PostView, error) {
	posts, err := s.repo.List(ctx)
	if err != nil {
		return nil, apperr.Dependency("list posts", err)
	}

	views := make([]types.PostView, 0, len(posts))
	for _, post := range posts {
		views = append(views, post.View(principal.ID))
	}
	return views, nil
}

// Get returns a single post annotated for the principal.
func (s *PostService) Get(ctx context.Context, principal types.Principal, postID int) (types.PostView, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return types.PostView{}, err
	}
	return post.View(principal.ID), nil
}

// ToggleLike flips the principal's membership in the post's liked_by set.
func (s *PostService) ToggleLike(ctx context.Context, principal types.Principal, postID int) (types.PostView, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return types.PostView{}, err
	}

	likedBy := make([]int, 0, len(post.LikedBy)+1)
	found := false
	for _, id := range post.LikedBy {
		if id == principal.ID {
			found = true
			continue
		}
		likedBy = append(likedBy, id)
	}
	if !found {
		likedBy = append(likedBy, principal.ID)
	}

	updated, err := s.repo.UpdateLikedBy(ctx, postID, likedBy)
	if err != nil {
		return types.PostView{}, apperr.Dependency("update like", err)
	}

	s.cache.InvalidateAll()
	s.publisher.Emit(ctx, events.TopicPosts, events.PostLiked, principal.ID, postID)
	return updated.View(principal.ID), nil
}

// RegisterView adds the principal to viewed_by if absent. Repeat views are
// no-ops; ids are never removed.
func (s *PostService) RegisterView(ctx context.Context, principal types.Principal, postID int) (types.PostView, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return types.PostView{}, err
	}

	viewedBy := post.ViewedBy
	if !containsInt(viewedBy, principal.ID) {
		viewedBy = append(viewedBy, principal.ID)
	}

	updated, err := s.repo.UpdateViewedBy(ctx, postID, viewedBy)
	if err != nil {
		return types.PostView{}, apperr.Dependency("update view", err)
	}

	s.cache.InvalidateAll()
	s.publisher.Emit(ctx, events.TopicPosts, events.PostViewed, principal.ID, postID)
	return updated.View(principal.ID), nil
}

// Update applies a caption and/or media patch, gated by CanModify. A patch
// with no effective fields returns the post unchanged.
func (s *PostService) Update(ctx context.Context, principal types.Principal, postID int, input UpdatePostInput) (types.PostView, error) {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return types.PostView{}, err
	}
	if err := s.authorizeModify(principal, post); err != nil {
		return types.PostView{}, err
	}

	patch := store.PostContentPatch{}

	if input.Caption != nil {
		normalized := rules.NormalizeCaption(*input.Caption)
		patch.Caption = &normalized
	}

	replacingMedia := input.MediaPublicID != nil || input.MediaURL != nil
	if replacingMedia {
		if input.MediaPublicID == nil || input.MediaURL == nil ||
			*input.MediaPublicID == "" || *input.MediaURL == "" {
			return types.PostView{}, apperr.Validation("media_public_id and media_url are required when replacing media")
		}

		mediaType := mediaTypeOrDefault(post.Media.Type, types.MediaTypeImage)
		if input.MediaType != nil && *input.MediaType != "" {
			mediaType = *input.MediaType
		}

		if post.Media.PublicID != "" && post.Media.PublicID != *input.MediaPublicID {
			s.destroyMedia(ctx, post.Media.PublicID)
		}

		patch.MediaPublicID = input.MediaPublicID
		patch.MediaURL = input.MediaURL
		patch.MediaType = &mediaType
	}

	if patch.Caption == nil && patch.MediaPublicID == nil {
		return post.View(principal.ID), nil
	}

	updated, err := s.repo.UpdateContent(ctx, postID, patch)
	if err != nil {
		return types.PostView{}, apperr.Dependency("update post", err)
	}

	s.cache.InvalidateAll()
	s.publisher.Emit(ctx, events.TopicPosts, events.PostUpdated, principal.ID, postID)
	return updated.View(principal.ID), nil
}

// Delete removes the post, gated by CanModify, destroying its media
// best-effort first.
func (s *PostService) Delete(ctx context.Context, principal types.Principal, postID int) error {
	post, err := s.getPost(ctx, postID)
	if err != nil {
		return err
	}
	if err := s.authorizeModify(principal, post); err != nil {
		return err
	}

	if post.Media.PublicID != "" {
		s.destroyMedia(ctx, post.Media.PublicID)
	}

	if err := s.repo.Delete(ctx, postID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return apperr.New(apperr.ErrNotFound, "post not found")
		}
		return apperr.Dependency("delete post", err)
	}

	s.cache.InvalidateAll()
	s.publisher.Emit(ctx, events.TopicPosts, events.PostDeleted, principal.ID, postID)
	return nil
}

func (s *PostService) getPost(ctx context.Context, postID int) (types.Post, error) {
	post, err := s.repo.Get(ctx, postID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.Post{}, apperr.New(apperr.ErrNotFound, "post not found")
		}
		return types.Post{}, apperr.Dependency("fetch post", err)
	}
	return post, nil
}

func (s *PostService) authorizeModify(principal types.Principal, post types.Post) error {
	if !rules.CanModify(strconv.Itoa(principal.ID), strconv.Itoa(post.Author.ID), principal.Role) {
		return apperr.New(apperr.ErrForbidden, "forbidden")
	}
	return nil
}

// destroyMedia deletes an external media object and deliberately discards the
// failure: stale external media is an accepted leak.
func (s *PostService) destroyMedia(ctx context.Context, publicID string) {
	if err := s.media.Destroy(ctx, publicID); err != nil {
		s.logger.WarnContext(ctx, "media destroy failed", "public_id", publicID, "error", err)
	}
}

func mediaTypeOrDefault(mediaType, fallback string) string {
	switch mediaType {
	case types.MediaTypeImage, types.MediaTypeVideo, types.MediaTypeRaw, types.MediaTypeAuto:
		return mediaType
	default:
		return fallback
	}
}

func containsInt(ids []int, id int) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
