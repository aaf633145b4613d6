package types

import "time"

// Media resource types accepted for post attachments.
const (
	MediaTypeImage = "image"
	MediaTypeVideo = "video"
	MediaTypeRaw   = "raw"
	MediaTypeAuto  = "auto"
)

// PostAuthor is a snapshot of the author taken when the post was created.
// It is not a live reference: later profile changes never rewrite it.
type PostAuthor struct {
	ID    int    `json:"id" db:"author_id"`
	Name  string `json:"name" db:"author_name"`
	Email string `json:"email" db:"author_email"`
}

// PostMedia describes the media object attached to a post.
type PostMedia struct {
	// PublicID is the identifier of the object in the media store.
	PublicID string `json:"public_id" db:"media_public_id"`

	// URL is the public URL serving the object.
	URL string `json:"url" db:"media_url"`

	// Type is the media resource type: "image", "video", "raw", or "auto".
	Type string `json:"type" db:"media_type"`
}

// Post represents a media post with its engagement state.
type Post struct {
	// ID is the unique identifier of the post.
	ID int `json:"id" db:"id"`

	// Caption is the post text, trimmed and capped at 250 characters.
	Caption string `json:"caption" db:"caption"`

	// CreatedAt is the timestamp when the post was created.
	CreatedAt time.Time `json:"created_at" db:"created_at"`

	// Author is the creation-time snapshot of the posting user.
	Author PostAuthor `json:"author"`

	// Media is the attached media object.
	Media PostMedia `json:"media"`

	// LikedBy holds the ids of users who currently like the post.
	// Each id appears at most once.
	LikedBy []int `json:"-" db:"liked_by"`

	// ViewedBy holds the ids of users who have viewed the post.
	// Each id appears at most once; ids are never removed.
	ViewedBy []int `json:"-" db:"viewed_by"`
}

// PostView is the API representation of a post, annotated for the
// requesting principal.
type PostView struct {
	ID         int        `json:"id"`
	Caption    string     `json:"caption"`
	CreatedAt  time.Time  `json:"created_at"`
	Author     PostAuthor `json:"author"`
	Media      PostMedia  `json:"media"`
	Likes      int        `json:"likes"`
	Views      int        `json:"views"`
	LikedByMe  bool       `json:"liked_by_me"`
	ViewedByMe bool       `json:"viewed_by_me"`
}

// View renders the post for the given principal id.
func (p Post) View(principalID int) PostView {
	return PostView{
		ID:         p.ID,
		Caption:    p.Caption,
		CreatedAt:  p.CreatedAt,
		Author:     p.Author,
		Media:      p.Media,
		Likes:      len(p.LikedBy),
		Views:      len(p.ViewedBy),
		LikedByMe:  containsID(p.LikedBy, principalID),
		ViewedByMe: containsID(p.ViewedBy, principalID),
	}
}

func containsID(ids []int, id int) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}
