package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http/httptest"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/campuslife/apiserver/internal/auth"
	"github.com/campuslife/apiserver/internal/cache"
	"github.com/campuslife/apiserver/internal/events"
	"github.com/campuslife/apiserver/internal/metrics"
	"github.com/campuslife/apiserver/internal/services"
	"github.com/campuslife/apiserver/internal/storage"
	"github.com/campuslife/apiserver/internal/store"
	"github.com/campuslife/apiserver/types"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

type fakeUserRepo struct {
	mu     sync.Mutex
	nextID int
	users  map[int]types.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{nextID: 1, users: make(map[int]types.User)}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	users := make([]types.User, 0, len(f.users))
	for _, user := range f.users {
		users = append(users, user)
	}
	sort.Slice(users, func(i, j int) bool { return users[i].ID < users[j].ID })
	return users, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.users {
		if existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.ID = f.nextID
	f.nextID++
	user.CreatedAt = time.Now()
	user.UpdatedAt = user.CreatedAt
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Update(_ context.Context, user types.User) (types.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNotFound
	}
	for id, existing := range f.users {
		if id != user.ID && existing.Email == user.Email {
			return types.User{}, store.ErrDuplicate
		}
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

type fakePostRepo struct {
	mu     sync.Mutex
	nextID int
	posts  map[int]types.Post
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{nextID: 1, posts: make(map[int]types.Post)}
}

func (f *fakePostRepo) List(_ context.Context) ([]types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	posts := make([]types.Post, 0, len(f.posts))
	for _, post := range f.posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID > posts[j].ID
	})
	return posts, nil
}

func (f *fakePostRepo) Get(_ context.Context, id int) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (f *fakePostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post.ID = f.nextID
	f.nextID++
	post.CreatedAt = time.Now()
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePostRepo) UpdateContent(_ context.Context, id int, patch store.PostContentPatch) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	if patch.Caption != nil {
		post.Caption = *patch.Caption
	}
	if patch.MediaPublicID != nil {
		post.Media.PublicID = *patch.MediaPublicID
	}
	if patch.MediaURL != nil {
		post.Media.URL = *patch.MediaURL
	}
	if patch.MediaType != nil {
		post.Media.Type = *patch.MediaType
	}
	f.posts[id] = post
	return post, nil
}

func (f *fakePostRepo) UpdateLikedBy(_ context.Context, id int, ids []int) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.LikedBy = ids
	f.posts[id] = post
	return post, nil
}

func (f *fakePostRepo) UpdateViewedBy(_ context.Context, id int, ids []int) (types.Post, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	post.ViewedBy = ids
	f.posts[id] = post
	return post, nil
}

func (f *fakePostRepo) Delete(_ context.Context, id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

type fakeVerifier struct {
	identity auth.Identity
	err      error
}

func (f *fakeVerifier) Verify(context.Context, string) (auth.Identity, error) {
	return f.identity, f.err
}

type fakeMediaBackend struct {
	mu      sync.Mutex
	objects map[string]string
}

func newFakeMediaBackend() *fakeMediaBackend {
	return &fakeMediaBackend{objects: make(map[string]string)}
}

func (f *fakeMediaBackend) EnsureBucket(context.Context) error { return nil }

func (f *fakeMediaBackend) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	if _, err := io.Copy(io.Discard, r); err != nil {
		return "", err
	}
	url := "https://media.test/test-bucket/" + key
	f.mu.Lock()
	f.objects[key] = url
	f.mu.Unlock()
	return url, nil
}

func (f *fakeMediaBackend) Delete(_ context.Context, key string) error {
	f.mu.Lock()
	delete(f.objects, key)
	f.mu.Unlock()
	return nil
}

func (f *fakeMediaBackend) List(_ context.Context, prefix string) ([]storage.MediaObject, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var objects []storage.MediaObject
	for key, url := range f.objects {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			objects = append(objects, storage.MediaObject{
				PublicID: key,
				URL:      url,
				Type:     storage.ResourceTypeFromKey(key),
			})
		}
	}
	return objects, nil
}

func (f *fakeMediaBackend) Bucket() string { return "test-bucket" }

// testEnv wires the routing stack over in-memory fakes, mirroring the
// production wiring minus the database and object store.
type testEnv struct {
	router   chi.Router
	sessions *auth.Sessions
	users    *fakeUserRepo
	posts    *fakePostRepo
	media    *fakeMediaBackend
	verifier *fakeVerifier
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	users := newFakeUserRepo()
	posts := newFakePostRepo()
	mediaBackend := newFakeMediaBackend()
	verifier := &fakeVerifier{}

	sessions := auth.NewSessions("test-secret", time.Hour)
	publisher := events.NewPublisher(nil, logger)
	responseCache := cache.New(time.Minute)
	registry := metrics.NewRegistry()
	mediaStore := storage.NewMediaStore(mediaBackend)

	resolver := services.NewIdentityResolver(users, []string{"dean@admin.example"}, logger)
	postService := services.NewPostService(posts, mediaStore, responseCache, registry, publisher, logger)
	userService := services.NewUserService(users, publisher, logger)

	authHandler := NewAuthHandler(verifier, sessions, resolver, publisher, logger, ".edu")
	postHandler := NewPostHandler(postService, responseCache, logger)
	userHandler := NewUserHandler(userService, logger)
	mediaHandler := NewMediaHandler(mediaStore, logger)

	router := chi.NewRouter()
	router.Route("/auth", func(r chi.Router) { AuthRouter(r, authHandler) })
	router.Route("/api/posts", func(r chi.Router) { PostRouter(r, postHandler, authHandler.RequireAuth) })
	router.Route("/api/media", func(r chi.Router) { MediaRouter(r, mediaHandler, authHandler.RequireAuth) })
	router.Route("/users", func(r chi.Router) { UserRouter(r, userHandler, authHandler.RequireAuth, RequireAdmin) })

	return &testEnv{
		router:   router,
		sessions: sessions,
		users:    users,
		posts:    posts,
		media:    mediaBackend,
		verifier: verifier,
	}
}

func (e *testEnv) seedUser(t *testing.T, name, email, role string) types.User {
	t.Helper()
	user, err := e.users.Create(context.Background(), types.User{Name: name, Email: email, Role: role})
	require.NoError(t, err)
	return user
}

func (e *testEnv) tokenFor(t *testing.T, user types.User) string {
	t.Helper()
	token, err := e.sessions.Issue(user.ID, user.Email, user.Name, user.Role)
	require.NoError(t, err)
	return token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(payload)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out))
	return out
}
