package image

import (
	"context"
	"mime"
	"net/url"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/types"
)

// Resolve turns user input into an image payload. The input is a data URI, an
// http(s) URL or a local path. The returned file is nil unless the image was
// read from disk.
func Resolve(ctx context.Context, input string) (types.ImageContent, *File, error) {
	input = strings.TrimSpace(input)
	if strings.HasPrefix(input, "data:") {
		content, err := FromDataURI(input)
		return content, nil, err
	}

	if u, err := url.Parse(input); err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != "" {
		content := types.ImageContent{Type: types.ImageTypeURL, Data: input}
		if mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(u.Path))); AllowedMediaTypes.Has(mediaType) {
			content.MediaType = mediaType
		}
		return content, nil, nil
	}

	f, err := Open(input)
	if err != nil {
		return types.ImageContent{}, nil, errors.Wrap(err, "opening image")
	}
	if err := Validate(f); err != nil {
		return types.ImageContent{}, nil, err
	}
	content, err := Encode(ctx, f)
	if err != nil {
		return types.ImageContent{}, nil, errors.Wrap(err, "encoding image")
	}
	return content, f, nil
}
