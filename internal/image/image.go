// Package image validates image attachments and converts them to and from
// the inline payloads sent to the backend.
package image

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	stdimage "image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
	"github.com/scylladb/go-set/strset"
	_ "golang.org/x/image/webp"
	"golang.org/x/sync/errgroup"

	"github.com/malonaz/madlen/internal/file"
	"github.com/malonaz/madlen/internal/types"
)

// MaxSize is the largest accepted image, in bytes.
const MaxSize = 5 * 1024 * 1024

var (
	// AllowedMediaTypes lists the media types the backend accepts.
	AllowedMediaTypes = strset.New("image/jpeg", "image/png", "image/gif", "image/webp")
	// Extensions accepted when picking images from disk.
	Extensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

	formatNames = []string{"JPEG", "PNG", "GIF", "WEBP"}
)

// ValidationError explains why an image was rejected.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string { return e.Reason }

// File is an image picked by the user.
type File struct {
	// Name of the file, for display.
	Name string
	// Declared media type of the file.
	MediaType string
	// Size in bytes.
	Size int64

	open func() (io.ReadCloser, error)
}

// Open returns the content of the file.
func (f *File) Open() (io.ReadCloser, error) {
	if f.open == nil {
		return nil, errors.Errorf("file %s has no content", f.Name)
	}
	return f.open()
}

// NewFile wraps in-memory content.
func NewFile(name, mediaType string, data []byte) *File {
	return &File{
		Name:      name,
		MediaType: mediaType,
		Size:      int64(len(data)),
		open: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// Open a file from disk. The media type is sniffed from the content, falling
// back to the extension.
func Open(path string) (*File, error) {
	path, err := file.ExpandPath(path)
	if err != nil {
		return nil, errors.Wrap(err, "expanding path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.Wrap(err, "getting os stats")
	}
	if info.IsDir() {
		return nil, errors.Errorf("%s is a directory", path)
	}

	mediaType := ""
	detected, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "detecting media type")
	}
	switch {
	case !detected.Is("application/octet-stream"):
		mediaType = detected.String()
	case file.HasValidExtension(path, Extensions):
		mediaType = mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	}
	if mediaType, _, err = mime.ParseMediaType(mediaType); err != nil {
		mediaType = ""
	}

	return &File{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Size:      info.Size(),
		open: func() (io.ReadCloser, error) {
			return os.Open(path)
		},
	}, nil
}

// Validate returns a *ValidationError if the file cannot be sent.
func Validate(f *File) error {
	if !AllowedMediaTypes.Has(f.MediaType) {
		return &ValidationError{
			Reason: fmt.Sprintf("Unsupported format. Please choose an image in %s format.", strings.Join(formatNames, ", ")),
		}
	}
	if f.Size > MaxSize {
		sizeMB := float64(f.Size) / (1024 * 1024)
		return &ValidationError{
			Reason: fmt.Sprintf("File is too large (%.2f MB). The maximum size is 5 MB.", sizeMB),
		}
	}
	return nil
}

// Encode reads the file and returns it as an inline base64 image.
func Encode(ctx context.Context, f *File) (types.ImageContent, error) {
	if err := ctx.Err(); err != nil {
		return types.ImageContent{}, err
	}
	reader, err := f.Open()
	if err != nil {
		return types.ImageContent{}, errors.Wrapf(err, "opening %s", f.Name)
	}
	defer reader.Close()
	data, err := io.ReadAll(reader)
	if err != nil {
		return types.ImageContent{}, errors.Wrapf(err, "reading %s", f.Name)
	}
	return types.ImageContent{
		Type:      types.ImageTypeBase64,
		Data:      base64.StdEncoding.EncodeToString(data),
		MediaType: f.MediaType,
	}, nil
}

// EncodeAll encodes every file. If any file fails, no image is returned.
func EncodeAll(ctx context.Context, files []*File) ([]types.ImageContent, error) {
	images := make([]types.ImageContent, len(files))
	g, ctx := errgroup.WithContext(ctx)
	for i, f := range files {
		g.Go(func() error {
			image, err := Encode(ctx, f)
			if err != nil {
				return err
			}
			images[i] = image
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return images, nil
}

// StripDataURIPrefix removes a leading `data:<type>;base64,` if present.
func StripDataURIPrefix(data string) string {
	if !strings.HasPrefix(data, "data:") {
		return data
	}
	if _, payload, ok := strings.Cut(data, ","); ok {
		return payload
	}
	return data
}

// FromDataURI parses a `data:<type>;base64,<payload>` URI. The decoded payload
// goes through the same checks as a file picked from disk.
func FromDataURI(uri string) (types.ImageContent, error) {
	header, payload, ok := strings.Cut(strings.TrimPrefix(uri, "data:"), ",")
	if !strings.HasPrefix(uri, "data:") || !ok {
		return types.ImageContent{}, errors.New("not a data URI")
	}
	mediaType, encoding, _ := strings.Cut(header, ";")
	if encoding != "base64" {
		return types.ImageContent{}, errors.Errorf("unsupported data URI encoding %q", encoding)
	}
	if !AllowedMediaTypes.Has(mediaType) {
		return types.ImageContent{}, &ValidationError{
			Reason: fmt.Sprintf("Unsupported format. Please choose an image in %s format.", strings.Join(formatNames, ", ")),
		}
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return types.ImageContent{}, &ValidationError{Reason: "The image could not be read. Please choose another image."}
	}
	if err := Validate(NewFile("pasted image", mediaType, data)); err != nil {
		return types.ImageContent{}, err
	}
	return types.ImageContent{Type: types.ImageTypeBase64, Data: payload, MediaType: mediaType}, nil
}

// ToDisplayURL returns a URL that displays the image.
func ToDisplayURL(image types.ImageContent) string {
	if image.Type == types.ImageTypeURL {
		return image.Data
	}
	return fmt.Sprintf("data:%s;base64,%s", image.MediaType, image.Data)
}

// Dimensions decodes the image header and returns its size in pixels.
func Dimensions(f *File) (int, int, error) {
	reader, err := f.Open()
	if err != nil {
		return 0, 0, errors.Wrapf(err, "opening %s", f.Name)
	}
	defer reader.Close()
	config, _, err := stdimage.DecodeConfig(reader)
	if err != nil {
		return 0, 0, errors.Wrap(err, "could not load image")
	}
	return config.Width, config.Height, nil
}

// FormatSize returns a human readable size.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		bytes = 0
	}
	return humanize.IBytes(uint64(bytes))
}
