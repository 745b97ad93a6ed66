// Package service implements the application's business logic on top of the
// repository layer.
package service

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif" // register decoders for uploaded sources
	"image/jpeg"
	_ "image/png"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"keepsake/internal/config"
	"keepsake/internal/models"
	"keepsake/internal/observability"

	"github.com/chai2010/webp"
	"github.com/gosimple/slug"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

const (
	DefaultUploadDir         = "/tmp/keepsake/uploads"
	DefaultMaxUploadSizeMB   = 10
	DefaultThumbnailMaxPixel = 200
	JPEGQuality              = 82
	WebPQuality              = 70
)

// ImageService stores memory source images and derives their thumbnails.
// Files live under <uploadDir>/memory/source/<id>/<filename> with thumbnails
// under <uploadDir>/memory/source/<id>/thumb/. Display rotation is applied
// when an image is served, never to the stored files.
type ImageService struct {
	uploadDir          string
	maxUploadSizeBytes int64
	thumbnailMaxPixel  int
}

// NewImageService builds an ImageService from config, falling back to
// defaults for missing values.
func NewImageService(cfg *config.Config) *ImageService {
	uploadDir := DefaultUploadDir
	maxUploadSizeMB := DefaultMaxUploadSizeMB
	thumbMax := DefaultThumbnailMaxPixel

	if cfg != nil {
		if cfg.UploadDir != "" {
			uploadDir = cfg.UploadDir
		}
		if cfg.MaxUploadSizeMB > 0 {
			maxUploadSizeMB = cfg.MaxUploadSizeMB
		}
		if cfg.ThumbnailMaxPixel > 0 {
			thumbMax = cfg.ThumbnailMaxPixel
		}
	}

	return &ImageService{
		uploadDir:          uploadDir,
		maxUploadSizeBytes: int64(maxUploadSizeMB) * 1024 * 1024,
		thumbnailMaxPixel:  thumbMax,
	}
}

// decodeUpload runs the upload checks (size, sniffed MIME, decodability)
// and returns the decoded image with its format. Nothing is written.
func (s *ImageService) decodeUpload(content []byte) (image.Image, string, error) {
	if len(content) == 0 {
		return nil, "", models.NewValidationError("No file uploaded")
	}
	if int64(len(content)) > s.maxUploadSizeBytes {
		return nil, "", models.NewValidationError(fmt.Sprintf("File too large (max %dMB)", s.maxUploadSizeBytes/(1024*1024)))
	}

	detectedType := http.DetectContentType(content)
	if !isAllowedImageMIME(detectedType) {
		return nil, "", models.NewValidationError("Invalid image type")
	}

	decoded, format, err := image.Decode(bytes.NewReader(content))
	if err != nil {
		return nil, "", models.NewValidationError("Invalid image file")
	}
	return decoded, format, nil
}

// Validate checks an upload the same way Attach does without storing it.
// Callers replacing an existing file use it before discarding the old one.
func (s *ImageService) Validate(content []byte) error {
	_, _, err := s.decodeUpload(content)
	return err
}

// Attach validates and stores an uploaded source file for the memory, writes
// its thumbnail (JPEG plus a WebP sibling), and fills in the memory's file
// fields. The memory must already have an ID.
func (s *ImageService) Attach(memory *models.Memory, filename string, content []byte) error {
	if memory == nil || memory.ID == 0 {
		return models.NewValidationError("Memory must be saved before attaching a file")
	}
	decoded, format, err := s.decodeUpload(content)
	if err != nil {
		return err
	}

	safeName := sanitizeFilename(filename, format)

	sourceRel := filepath.ToSlash(filepath.Join("memory", "source", fmt.Sprint(memory.ID), safeName))
	thumbName := thumbnailName(safeName)
	thumbRel := filepath.ToSlash(filepath.Join("memory", "source", fmt.Sprint(memory.ID), "thumb", thumbName))
	webpRel := strings.TrimSuffix(thumbRel, filepath.Ext(thumbRel)) + ".webp"

	written := []string{}
	cleanup := func() {
		for _, rel := range written {
			_ = os.Remove(filepath.Join(s.uploadDir, rel))
		}
	}

	doneStore := observability.TrackImageStage("store")
	if err := writeBytesToFile(filepath.Join(s.uploadDir, sourceRel), content); err != nil {
		return models.NewInternalError(err)
	}
	written = append(written, sourceRel)
	doneStore()

	doneThumb := observability.TrackImageStage("thumbnail")
	thumb := resizeToFit(decoded, s.thumbnailMaxPixel, s.thumbnailMaxPixel)
	thumbBytes, err := encodeJPEG(thumb, JPEGQuality)
	if err != nil {
		cleanup()
		return models.NewInternalError(err)
	}
	if err := writeBytesToFile(filepath.Join(s.uploadDir, thumbRel), thumbBytes); err != nil {
		cleanup()
		return models.NewInternalError(err)
	}
	written = append(written, thumbRel)
	doneThumb()

	doneWebP := observability.TrackImageStage("webp")
	webpBytes, err := encodeWebP(thumb, WebPQuality)
	if err != nil {
		cleanup()
		return models.NewInternalError(err)
	}
	if err := writeBytesToFile(filepath.Join(s.uploadDir, webpRel), webpBytes); err != nil {
		cleanup()
		return models.NewInternalError(err)
	}
	doneWebP()

	observability.UploadBytes.Observe(float64(len(content)))

	memory.SourceFilename = safeName
	memory.SourcePath = sourceRel
	memory.ThumbnailPath = thumbRel
	return nil
}

// Remove deletes every stored file for the memory. Missing files are not an
// error; removal is best effort on destroy.
func (s *ImageService) Remove(memory *models.Memory) {
	if memory == nil || memory.ID == 0 {
		return
	}
	_ = os.RemoveAll(filepath.Join(s.uploadDir, "memory", "source", fmt.Sprint(memory.ID)))
}

// ResolveSource maps a memory ID and filename to the stored source file path.
func (s *ImageService) ResolveSource(memoryID uint, filename string) (string, error) {
	return s.resolve("source", memoryID, filename)
}

// ResolveThumb maps a memory ID and filename to the stored thumbnail path.
func (s *ImageService) ResolveThumb(memoryID uint, filename string) (string, error) {
	return s.resolve("thumb", memoryID, filename)
}

func (s *ImageService) resolve(kind string, memoryID uint, filename string) (string, error) {
	if memoryID == 0 || !isSafeFilename(filename) {
		return "", models.NewValidationError("Invalid file reference")
	}
	var full string
	if kind == "thumb" {
		full = filepath.Join(s.uploadDir, "memory", "source", fmt.Sprint(memoryID), "thumb", filename)
	} else {
		full = filepath.Join(s.uploadDir, "memory", "source", fmt.Sprint(memoryID), filename)
	}
	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return "", models.NewNotFoundError("File", filename)
		}
		return "", models.NewInternalError(err)
	}
	return full, nil
}

// RenderRotated returns the bytes to serve for the stored file, applying the
// display rotation. Unrotated files are passed through untouched; rotated
// ones are re-encoded as JPEG.
func (s *ImageService) RenderRotated(path string, rotation int) ([]byte, string, error) {
	// #nosec G304: path comes from resolve, which rejects traversal
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", models.NewNotFoundError("File", filepath.Base(path))
		}
		return nil, "", models.NewInternalError(err)
	}

	contentType := contentTypeForFile(path, raw)
	rotation = NormalizeRotation(rotation)
	if rotation == 0 {
		return raw, contentType, nil
	}

	decoded, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		// Not decodable (should not happen for our own files); serve as stored.
		return raw, contentType, nil
	}

	rotated := rotate(decoded, rotation)
	out, err := encodeJPEG(rotated, JPEGQuality)
	if err != nil {
		return nil, "", models.NewInternalError(err)
	}
	return out, "image/jpeg", nil
}

// NormalizeRotation snaps a rotation value to 0, 90, 180 or 270.
func NormalizeRotation(rotation int) int {
	rotation %= 360
	if rotation < 0 {
		rotation += 360
	}
	switch rotation {
	case 90, 180, 270:
		return rotation
	default:
		return 0
	}
}

// rotate turns the image clockwise by the given normalized angle.
func rotate(src image.Image, rotation int) image.Image {
	b := src.Bounds()
	w, h := b.Dx(), b.Dy()

	var dst *image.RGBA
	switch rotation {
	case 90, 270:
		dst = image.NewRGBA(image.Rect(0, 0, h, w))
	default:
		dst = image.NewRGBA(image.Rect(0, 0, w, h))
	}

	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := src.At(b.Min.X+x, b.Min.Y+y)
			switch rotation {
			case 90:
				dst.Set(h-1-y, x, c)
			case 180:
				dst.Set(w-1-x, h-1-y, c)
			case 270:
				dst.Set(y, w-1-x, c)
			}
		}
	}
	return dst
}

func resizeToFit(src image.Image, maxWidth, maxHeight int) image.Image {
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
	newW := int(float64(w) * scale)
	newH := int(float64(h) * scale)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	dst := image.NewRGBA(image.Rect(0, 0, newW, newH))
	xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, bounds, xdraw.Over, nil)
	return dst
}

func encodeJPEG(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := jpeg.Encode(buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeWebP(img image.Image, quality int) ([]byte, error) {
	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(quality)}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func isAllowedImageMIME(contentType string) bool {
	switch normalizeContentType(contentType) {
	case "image/jpeg", "image/jpg", "image/png", "image/gif", "image/webp":
		return true
	default:
		return false
	}
}

func normalizeContentType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(contentType))
	}
	return strings.ToLower(strings.TrimSpace(mediaType))
}

// sanitizeFilename slugs the base name and forces an extension matching the
// decoded format, so stored names are URL and filesystem safe.
func sanitizeFilename(filename, format string) string {
	base := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name := slug.Make(base)
	if name == "" {
		name = "upload"
	}
	return name + "." + extForFormat(format)
}

func extForFormat(format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "png":
		return "png"
	case "gif":
		return "gif"
	case "webp":
		return "webp"
	default:
		return "jpg"
	}
}

// thumbnailName keeps the source's base name but normalizes the extension to
// jpg, since thumbnails are always JPEG encoded.
func thumbnailName(sourceName string) string {
	return strings.TrimSuffix(sourceName, filepath.Ext(sourceName)) + ".jpg"
}

func isSafeFilename(filename string) bool {
	if filename == "" || strings.ContainsAny(filename, "/\\") {
		return false
	}
	return filename == filepath.Base(filename) && !strings.HasPrefix(filename, ".")
}

func contentTypeForFile(path string, raw []byte) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	default:
		return http.DetectContentType(raw)
	}
}

func writeBytesToFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o600)
}
