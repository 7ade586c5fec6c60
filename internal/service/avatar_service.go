package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/draw"
	_ "image/gif" // decoded only so it can be rejected as unsupported
	_ "image/jpeg"
	_ "image/png"
	"log/slog"
	"strings"
	"time"

	"echo/internal/config"
	"echo/internal/models"
	"echo/internal/observability"
	"echo/internal/repository"
	"echo/internal/storage"

	"github.com/chai2010/webp"
	"go.opentelemetry.io/otel/attribute"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultAvatarMaxBytes     = 5 * 1024 * 1024
	DefaultAvatarMaxDimension = 512
	DefaultAvatarQuality      = 85
	DefaultAvatarSubdir       = "uploads/profile"

	// decoded pixel ceiling, checked from the header before allocating
	maxAvatarPixels = 40_000_000

	msgUploadEmpty        = "Uploaded file is empty."
	msgAvatarNotAttached  = "Could not update profile picture."
	avatarOutputExtension = ".webp"
)

var allowedAvatarFormats = map[string]bool{
	"jpeg": true,
	"png":  true,
	"webp": true,
}

// AvatarInput is one uploaded profile picture.
type AvatarInput struct {
	UserID   string
	Filename string
	Content  []byte
}

// AvatarResult describes the stored avatar.
type AvatarResult struct {
	URL    string
	Width  int
	Height int
}

// AvatarService turns uploads into bounded WEBP avatars and records them.
type AvatarService struct {
	media    repository.MediaRepository
	store    storage.Store
	maxBytes int64
	maxDim   int
	quality  int
	subdir   string
	log      *observability.ServiceLogger
}

func NewAvatarService(media repository.MediaRepository, store storage.Store, cfg *config.Config) *AvatarService {
	s := &AvatarService{
		media:    media,
		store:    store,
		maxBytes: DefaultAvatarMaxBytes,
		maxDim:   DefaultAvatarMaxDimension,
		quality:  DefaultAvatarQuality,
		subdir:   DefaultAvatarSubdir,
		log:      observability.NewServiceLogger("avatar"),
	}
	if cfg != nil {
		if cfg.ProfileImageMaxBytes > 0 {
			s.maxBytes = cfg.ProfileImageMaxBytes
		}
		if cfg.ProfileImageMaxDimension > 0 {
			s.maxDim = cfg.ProfileImageMaxDimension
		}
		if cfg.ProfileImageQuality > 0 {
			s.quality = cfg.ProfileImageQuality
		}
		if cfg.ProfileImageUploadSubdir != "" {
			s.subdir = cfg.ProfileImageUploadSubdir
		}
	}
	return s
}

// MaxBytes is the upload ceiling, for handlers that bound the request body.
func (s *AvatarService) MaxBytes() int64 {
	return s.maxBytes
}

// TooLargeMessage names the ceiling in whole megabytes.
func (s *AvatarService) TooLargeMessage() string {
	return fmt.Sprintf("Image is too large. Maximum size is %d MB.", (s.maxBytes+(1<<20)-1)>>20)
}

// Upload validates, transforms, stores and links the avatar. Nothing is
// written unless the image passes every check.
func (s *AvatarService) Upload(ctx context.Context, in AvatarInput) (*AvatarResult, error) {
	span, ctx := observability.StartServiceSpan(ctx, "avatar", "Upload")
	defer span.End()

	res, err := s.upload(ctx, in)
	if err != nil {
		span.SetError(err)
		observability.AvatarUploads.WithLabelValues(outcomeFor(err)).Inc()
		return nil, err
	}
	span.AddAttributes(attribute.Int("avatar.width", res.Width), attribute.Int("avatar.height", res.Height))
	observability.AvatarUploads.WithLabelValues("success").Inc()
	return res, nil
}

func (s *AvatarService) upload(ctx context.Context, in AvatarInput) (*AvatarResult, error) {
	if in.UserID == "" {
		return nil, models.NewUnauthorizedError("authentication required")
	}
	if len(in.Content) == 0 {
		return nil, models.NewFieldValidationError("profile_picture", msgUploadEmpty)
	}
	if int64(len(in.Content)) > s.maxBytes {
		return nil, models.NewPayloadTooLargeError(s.TooLargeMessage())
	}

	start := time.Now()
	encoded, bounds, err := s.Transform(in.Content)
	if err != nil {
		return nil, err
	}
	observability.AvatarProcessingSeconds.Observe(time.Since(start).Seconds())

	key := storage.ObjectKey(s.subdir, in.UserID+avatarOutputExtension)
	url, err := s.store.Put(ctx, key, encoded, models.MediaTypeWebP)
	if err != nil {
		s.log.Error(ctx, "avatar write failed", err, slog.String("key", key))
		return nil, models.NewStorageError(err)
	}

	ok, err := s.media.UpsertProfileImage(ctx, in.UserID, url, models.MediaTypeWebP)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &models.AppError{Code: models.CodeNotFound, Message: msgAvatarNotAttached}
	}

	s.log.Info(ctx, "avatar updated",
		slog.String("user_id", in.UserID),
		slog.String("filename", in.Filename),
		slog.Int("bytes_in", len(in.Content)),
		slog.Int("bytes_out", len(encoded)),
	)
	return &AvatarResult{URL: url, Width: bounds.Dx(), Height: bounds.Dy()}, nil
}

// Transform decodes raw, checks the format, bounds it to the configured
// square and re-encodes it as WEBP.
func (s *AvatarService) Transform(raw []byte) ([]byte, image.Rectangle, error) {
	header, format, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return nil, image.Rectangle{}, models.NewInvalidImageError(err)
	}
	format = strings.ToLower(format)
	if !allowedAvatarFormats[format] {
		return nil, image.Rectangle{}, models.NewUnsupportedFormatError(format)
	}
	if header.Width <= 0 || header.Height <= 0 || header.Width*header.Height > maxAvatarPixels {
		return nil, image.Rectangle{}, models.NewInvalidImageError(fmt.Errorf("dimensions %dx%d", header.Width, header.Height))
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, image.Rectangle{}, models.NewInvalidImageError(err)
	}

	normalized := resizeToFit(toNRGBA(decoded), s.maxDim, s.maxDim)

	encoded, err := encodeWebP(normalized, s.quality)
	if err != nil {
		return nil, image.Rectangle{}, models.NewInternalError(err)
	}
	return encoded, normalized.Bounds(), nil
}

func toNRGBA(src image.Image) *image.NRGBA {
	if n, ok := src.(*image.NRGBA); ok && n.Bounds().Min == (image.Point{}) {
		return n
	}
	b := src.Bounds()
	dst := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// resizeToFit scales down to fit maxWidth x maxHeight, keeping aspect ratio. It never upscales.
func resizeToFit(src *image.NRGBA, maxWidth, maxHeight int) *image.NRGBA {
	bounds := src.Bounds()
	w := bounds.Dx()
	h := bounds.Dy()
	if w <= 0 || h <= 0 {
		return src
	}
	if w <= maxWidth && h <= maxHeight {
		return src
	}

	scaleW := float64(maxWidth) / float64(w)
	scaleH := float64(maxHeight) / float64(h)
	scale := scaleW
	if scaleH < scale {
		scale = scaleH
	}
	newW := int(float64(w)*scale + 0.5)
	newH := int(float64(h)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}
	if newW > maxWidth {
		newW = maxWidth
	}
	if newH > maxHeight {
		newH = maxHeight
	}

	dst := image.NewNRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Src, nil)
	return dst
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func outcomeFor(err error) string {
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return strings.ToLower(appErr.Code)
	}
	return "error"
}
