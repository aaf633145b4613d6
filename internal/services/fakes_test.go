package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/campuslife/apiserver/internal/store"
	"github.com/campuslife/apiserver/types"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeUserRepo is an in-memory UserRepository.
type fakeUserRepo struct {
	users  map[int]types.User
	nextID int

	getByEmailErr error
	createErr     error
	updateErr     error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]types.User), nextID: 1}
}

func (f *fakeUserRepo) GetByID(_ context.Context, id int) (types.User, error) {
	user, ok := f.users[id]
	if !ok {
		return types.User{}, store.ErrNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) GetByEmail(_ context.Context, email string) (types.User, error) {
	if f.getByEmailErr != nil {
		return types.User{}, f.getByEmailErr
	}
	for _, user := range f.users {
		if user.Email == email {
			return user, nil
		}
	}
	return types.User{}, store.ErrNotFound
}

func (f *fakeUserRepo) List(_ context.Context) ([]types.User, error) {
	ids := make([]int, 0, len(f.users))
	for id := range f.users {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	users := make([]types.User, 0, len(ids))
	for _, id := range ids {
		users = append(users, f.users[id])
	}
	return users, nil
}

func (f *fakeUserRepo) Create(_ context.Context, user types.User) (types.User, error) {
	if f.createErr != nil {
		return types.User{}, f.createErr
	}
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
	if f.updateErr != nil {
		return types.User{}, f.updateErr
	}
	if _, ok := f.users[user.ID]; !ok {
		return types.User{}, store.ErrNoRowsAffected
	}
	user.UpdatedAt = time.Now()
	f.users[user.ID] = user
	return user, nil
}

func (f *fakeUserRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.users[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.users, id)
	return nil
}

// fakePostRepo is an in-memory PostRepository.
type fakePostRepo struct {
	posts  map[int]types.Post
	nextID int
}

func newFakePostRepo() *fakePostRepo {
	return &fakePostRepo{posts: make(map[int]types.Post), nextID: 1}
}

func (f *fakePostRepo) List(_ context.Context) ([]types.Post, error) {
	posts := make([]types.Post, 0, len(f.posts))
	for _, post := range f.posts {
		posts = append(posts, post)
	}
	sort.Slice(posts, func(i, j int) bool {
		if posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].ID > posts[j].ID
		}
		return posts[i].CreatedAt.After(posts[j].CreatedAt)
	})
	return posts, nil
}

func (f *fakePostRepo) Get(_ context.Context, id int) (types.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNotFound
	}
	return post, nil
}

func (f *fakePostRepo) Create(_ context.Context, post types.Post) (types.Post, error) {
	post.ID = f.nextID
	f.nextID++
	post.CreatedAt = time.Now()
	f.posts[post.ID] = post
	return post, nil
}

func (f *fakePostRepo) UpdateContent(_ context.Context, id int, patch store.PostContentPatch) (types.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNoRowsAffected
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
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNoRowsAffected
	}
	post.LikedBy = ids
	f.posts[id] = post
	return post, nil
}

func (f *fakePostRepo) UpdateViewedBy(_ context.Context, id int, ids []int) (types.Post, error) {
	post, ok := f.posts[id]
	if !ok {
		return types.Post{}, store.ErrNoRowsAffected
	}
	post.ViewedBy = ids
	f.posts[id] = post
	return post, nil
}

func (f *fakePostRepo) Delete(_ context.Context, id int) error {
	if _, ok := f.posts[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.posts, id)
	return nil
}

// fakeMedia records destroy calls and optionally fails them.
type fakeMedia struct {
	destroyed []string
	err       error
}

func (f *fakeMedia) Destroy(_ context.Context, publicID string) error {
	if f.err != nil {
		return f.err
	}
	f.destroyed = append(f.destroyed, publicID)
	return nil
}

// fakeCache counts invalidations.
type fakeCache struct {
	invalidations int
}

func (f *fakeCache) InvalidateAll() { f.invalidations++ }

// fakeCounter counts created posts.
type fakeCounter struct {
	created int
}

func (f *fakeCounter) IncPostsCreated() { f.created++ }
