package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"time"

	"github.com/campuslife/apiserver/internal/rules"
	"github.com/campuslife/apiserver/types"
	"github.com/lib/pq"
)

const postColumns = `
	id, caption, media_public_id, media_url, media_type,
	author_id, author_name, author_email, liked_by, viewed_by, created_at`

// PostContentPatch carries the mutable content fields of a post. Nil fields
// are left untouched. Media fields are replaced together or not at all; the
// service validates that before calling the store.
type PostContentPatch struct {
	Caption       *string
	MediaPublicID *string
	MediaURL      *string
	MediaType     *string
}

// PostRepository handles persistence for posts. Engagement arrays are stored
// as text[] and coerced to ints at this boundary so callers only ever see
// typed records.
type PostRepository struct {
	db *sql.DB
}

func NewPostRepository(db *sql.DB) *PostRepository {
	return &PostRepository{db: db}
}

func (r *PostRepository) List(ctx context.Context) ([]types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var posts []types.Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		posts = append(posts, post)
	}
	return posts, rows.Err()
}

func (r *PostRepository) Get(ctx context.Context, id int) (types.Post, error) {
	const query = `
		SELECT ` + postColumns + `
		FROM posts
		WHERE id = $1`
	post, err := scanPost(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Post{}, ErrNotFound
		}
		return types.Post{}, err
	}
	return post, nil
}

func (r *PostRepository) Create(ctx context.Context, post types.Post) (types.Post, error) {
	post.CreatedAt = time.Now()

	const query = `
		INSERT INTO posts (
			caption, media_public_id, media_url, media_type,
			author_id, author_name, author_email, liked_by, viewed_by, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`
	err := r.db.QueryRowContext(
		ctx,
		query,
		post.Caption,
		post.Media.PublicID,
		post.Media.URL,
		post.Media.Type,
		post.Author.ID,
		post.Author.Name,
		post.Author.Email,
		pq.Array(idsToStrings(post.LikedBy)),
		pq.Array(idsToStrings(post.ViewedBy)),
		post.CreatedAt,
	).Scan(&post.ID)
	if err != nil {
		return types.Post{}, err
	}
	return post, nil
}

// UpdateContent applies a content patch and returns the updated post.
func (r *PostRepository) UpdateContent(ctx context.Context, id int, patch PostContentPatch) (types.Post, error) {
	const query = `
		UPDATE posts
		SET caption = COALESCE($1, caption),
			media_public_id = COALESCE($2, media_public_id),
			media_url = COALESCE($3, media_url),
			media_type = COALESCE($4, media_type)
		WHERE id = $5`
	result, err := r.db.ExecContext(
		ctx,
		query,
		patch.Caption,
		patch.MediaPublicID,
		patch.MediaURL,
		patch.MediaType,
		id,
	)
	if err != nil {
		return types.Post{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNoRowsAffected
	}
	return r.Get(ctx, id)
}

// UpdateLikedBy replaces the liked_by array. This is a full-array
// read-modify-write replacement: concurrent writers can lose an update.
func (r *PostRepository) UpdateLikedBy(ctx context.Context, id int, ids []int) (types.Post, error) {
	return r.updateEngagement(ctx, id, "liked_by", ids)
}

// UpdateViewedBy replaces the viewed_by array.
func (r *PostRepository) UpdateViewedBy(ctx context.Context, id int, ids []int) (types.Post, error) {
	return r.updateEngagement(ctx, id, "viewed_by", ids)
}

func (r *PostRepository) updateEngagement(ctx context.Context, id int, column string, ids []int) (types.Post, error) {
	query := `UPDATE posts SET ` + column + ` = $1 WHERE id = $2`
	result, err := r.db.ExecContext(ctx, query, pq.Array(idsToStrings(ids)), id)
	if err != nil {
		return types.Post{}, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return types.Post{}, err
	}
	if affected == 0 {
		return types.Post{}, ErrNoRowsAffected
	}
	return r.Get(ctx, id)
}

func (r *PostRepository) Delete(ctx context.Context, id int) error {
	const query = `DELETE FROM posts WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (types.Post, error) {
	var post types.Post
	var likedBy, viewedBy []string
	err := row.Scan(
		&post.ID,
		&post.Caption,
		&post.Media.PublicID,
		&post.Media.URL,
		&post.Media.Type,
		&post.Author.ID,
		&post.Author.Name,
		&post.Author.Email,
		pq.Array(&likedBy),
		pq.Array(&viewedBy),
		&post.CreatedAt,
	)
	if err != nil {
		return types.Post{}, err
	}
	post.LikedBy = rules.CoerceIDList(likedBy)
	post.ViewedBy = rules.CoerceIDList(viewedBy)
	return post, nil
}

func idsToStrings(ids []int) []string {
	values := make([]string, len(ids))
	for i, id := range ids {
		values[i] = strconv.Itoa(id)
	}
	return values
}
