package storage

import (
	"context"
	"io"
	"strings"

	"github.com/campuslife/apiserver/types"
	"github.com/google/uuid"
)

const keyPrefix = "campus_life"

// MediaObject describes a stored media object as exposed to the API.
type MediaObject struct {
	PublicID string `json:"public_id"`
	URL      string `json:"url"`
	Type     string `json:"type"`
}

// MediaBackend defines the object operations common across backends.
type MediaBackend interface {
	EnsureBucket(ctx context.Context) error
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) (url string, err error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string) ([]MediaObject, error)
	Bucket() string
}

// MediaStore wraps a backend with the owner-scoped media API.
type MediaStore struct {
	backend MediaBackend
}

// NewMediaStore constructs a MediaStore for the provided backend.
func NewMediaStore(backend MediaBackend) *MediaStore {
	return &MediaStore{backend: backend}
}

// EnsureBucket ensures the configured bucket exists.
func (s *MediaStore) EnsureBucket(ctx context.Context) error {
	return s.backend.EnsureBucket(ctx)
}

// Upload stores a media object under the owner's scope and returns its
// public id, URL and resource type.
func (s *MediaStore) Upload(ctx context.Context, ownerScope string, r io.Reader, size int64, contentType, resourceType string) (MediaObject, error) {
	resourceType = NormalizeResourceType(resourceType)
	key := ObjectKey(ownerScope, resourceType)

	url, err := s.backend.Upload(ctx, key, r, size, contentType)
	if err != nil {
		return MediaObject{}, err
	}
	return MediaObject{PublicID: key, URL: url, Type: resourceType}, nil
}

// Destroy removes an object. Callers treat failures as best-effort.
func (s *MediaStore) Destroy(ctx context.Context, publicID string) error {
	return s.backend.Delete(ctx, publicID)
}

// List returns the objects stored under the owner's scope.
func (s *MediaStore) List(ctx context.Context, ownerScope string) ([]MediaObject, error) {
	return s.backend.List(ctx, keyPrefix+"/"+sanitizeOwner(ownerScope)+"/")
}

// Bucket returns the configured bucket name.
func (s *MediaStore) Bucket() string {
	return s.backend.Bucket()
}

// ObjectKey builds the storage key for a new object. The resource type is
// encoded in the path so listings can recover it without a stat per object.
func ObjectKey(ownerScope, resourceType string) string {
	return keyPrefix + "/" + sanitizeOwner(ownerScope) + "/" + resourceType + "/" + uuid.NewString()
}

// NormalizeResourceType maps unknown resource types to "auto".
func NormalizeResourceType(resourceType string) string {
	switch resourceType {
	case types.MediaTypeImage, types.MediaTypeVideo, types.MediaTypeRaw, types.MediaTypeAuto:
		return resourceType
	default:
		return types.MediaTypeAuto
	}
}

// ResourceTypeFromKey recovers the resource type segment of an object key.
func ResourceTypeFromKey(key string) string {
	parts := strings.Split(key, "/")
	if len(parts) < 4 {
		return types.MediaTypeAuto
	}
	return NormalizeResourceType(parts[2])
}

func sanitizeOwner(owner string) string {
	if owner == "" {
		owner = "anonymous"
	}
	return strings.ReplaceAll(owner, "/", "_")
}
