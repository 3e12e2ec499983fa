package media

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"battdevy/internal/common"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// Buckets
const (
	BucketBatteryImages = "battery-images"
	BucketDeviceImages  = "device-images"
)

const (
	// MaxImageSize is the largest accepted upload.
	MaxImageSize = 5 << 20
	// DefaultURLValidity is how long a minted signed URL stays valid.
	DefaultURLValidity = time.Hour
	// cacheMargin keeps cached URLs from outliving their signature.
	cacheMargin = 5 * time.Minute
)

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/webp": "webp",
	"image/gif":  "gif",
}

// Upload - one image file on its way to storage
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FromFileHeader opens a multipart file. The returned closer must be called
// once the upload is done.
func FromFileHeader(fh *multipart.FileHeader) (*Upload, io.Closer, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	return &Upload{
		Filename:    fh.Filename,
		ContentType: fh.Header.Get("Content-Type"),
		Size:        fh.Size,
		Body:        f,
	}, f, nil
}

// ObjectKey builds {ownerId}/{entityId}/image.{ext}
func ObjectKey(ownerID, entityID uuid.UUID, ext string) string {
	return fmt.Sprintf("%s/%s/image.%s", ownerID, entityID, ext)
}

// Service - image storage with cached signed URLs
type Service struct {
	store    ObjectStore
	cache    URLCache
	validity time.Duration
}

// NewService creates the media service. validity <= cacheMargin falls back
// to DefaultURLValidity.
func NewService(store ObjectStore, cache URLCache, validity time.Duration) *Service {
	if validity <= cacheMargin {
		validity = DefaultURLValidity
	}
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		store:    store,
		cache:    cache,
		validity: validity,
	}
}

func validBucket(bucket string) bool {
	return bucket == BucketBatteryImages || bucket == BucketDeviceImages
}

// detectImageType sniffs the first bytes of the upload and returns the
// content type together with a reader that still yields the whole body.
func detectImageType(up *Upload) (string, io.Reader, error) {
	head := make([]byte, 512)
	n, err := io.ReadFull(up.Body, head)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return "", nil, fmt.Errorf("failed to read upload: %w", err)
	}
	head = head[:n]
	if n == 0 {
		return "", nil, fmt.Errorf("empty file: %w", common.ErrInvalidImage)
	}
	contentType := http.DetectContentType(head)
	return contentType, io.MultiReader(bytes.NewReader(head), up.Body), nil
}

// UploadImage validates and stores an image for an entity, replacing any
// previous one. It returns the stored object path.
func (s *Service) UploadImage(ctx context.Context, bucket string, ownerID, entityID uuid.UUID, up *Upload) (string, error) {
	if !validBucket(bucket) {
		return "", fmt.Errorf("unknown bucket %q: %w", bucket, common.ErrValidation)
	}
	if up == nil || up.Body == nil {
		return "", fmt.Errorf("no file: %w", common.ErrInvalidImage)
	}
	if up.Size > MaxImageSize {
		return "", fmt.Errorf("file is %d bytes, max %d: %w", up.Size, MaxImageSize, common.ErrInvalidImage)
	}

	contentType, body, err := detectImageType(up)
	if err != nil {
		return "", err
	}
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", fmt.Errorf("unsupported content type %s: %w", contentType, common.ErrInvalidImage)
	}
	if declared := strings.TrimSpace(up.ContentType); declared != "" && !strings.HasPrefix(declared, "image/") && declared != "application/octet-stream" {
		return "", fmt.Errorf("declared content type %s is not an image: %w", declared, common.ErrInvalidImage)
	}

	key := ObjectKey(ownerID, entityID, ext)
	if err := s.store.PutObject(ctx, bucket, key, contentType, io.LimitReader(body, MaxImageSize+1), up.Size); err != nil {
		return "", fmt.Errorf("failed to upload image: %w", err)
	}
	s.cache.Delete(ctx, cacheKey(bucket, key))

	log.Infof("🖼️ image stored: %s/%s (%s, %d bytes)", bucket, key, contentType, up.Size)
	return key, nil
}

// DeleteImage removes a stored image and its cached URL
func (s *Service) DeleteImage(ctx context.Context, bucket, path string) error {
	if path == "" {
		return nil
	}
	s.cache.Delete(ctx, cacheKey(bucket, path))
	if err := s.store.DeleteObject(ctx, bucket, path); err != nil {
		return fmt.Errorf("failed to delete image: %w", err)
	}
	return nil
}

// SignedURL returns a GET URL for path, reusing a cached one while it is
// still comfortably inside its validity window.
func (s *Service) SignedURL(ctx context.Context, bucket, path string) (string, error) {
	if path == "" {
		return "", nil
	}
	key := cacheKey(bucket, path)
	if url, ok := s.cache.Get(ctx, key); ok {
		return url, nil
	}
	url, err := s.store.PresignGet(ctx, bucket, path, s.validity)
	if err != nil {
		return "", fmt.Errorf("failed to sign image URL: %w", err)
	}
	s.cache.Set(ctx, key, url, s.validity-cacheMargin)
	return url, nil
}

// ImageURL is SignedURL for optional paths; failures are logged and yield
// an empty URL so list views still render.
func (s *Service) ImageURL(ctx context.Context, bucket string, path *string) string {
	if path == nil || *path == "" {
		return ""
	}
	url, err := s.SignedURL(ctx, bucket, *path)
	if err != nil {
		log.WithError(err).Warnf("⚠️ image URL unavailable for %s/%s", bucket, *path)
		return ""
	}
	return url
}

func cacheKey(bucket, path string) string {
	return bucket + "/" + path
}
