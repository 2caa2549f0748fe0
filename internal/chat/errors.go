package chat

import (
	"context"
	"strings"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/gateway"
	"github.com/malonaz/madlen/internal/image"
)

var (
	// ErrNoModel is returned when no model can be resolved.
	ErrNoModel = errors.New("no model available")
	// ErrVisionUnsupported is returned when images are sent to a model without vision support.
	ErrVisionUnsupported = errors.New("selected model does not support images")
	// ErrUnknownChat is returned when selecting a chat that does not exist.
	ErrUnknownChat = errors.New("unknown chat")
	// ErrUnknownModel is returned when selecting a model outside the catalog.
	ErrUnknownModel = errors.New("unknown model")
)

const maxErrorLength = 120

var kindToDescription = map[gateway.Kind]string{
	gateway.KindNetwork:            "Could not reach the server. Please check your connection.",
	gateway.KindVisionNotSupported: "This model does not support images. Please choose a vision-capable model.",
	gateway.KindImageTooLarge:      "The image is too large. The maximum size is 5 MB.",
	gateway.KindInvalidImage:       "The image could not be processed. Please try another image.",
	gateway.KindRateLimit:          "The model is very busy right now. Please choose another model.",
	gateway.KindModelNotFound:      "This model cannot be reached (404).",
	gateway.KindServer:             "Server error. Please try again later.",
}

// Describe returns a short user facing description of err.
func Describe(err error) string {
	if err == nil {
		return ""
	}

	var validationErr *image.ValidationError
	var gatewayErr *gateway.Error
	switch {
	case errors.Is(err, ErrNoModel):
		return "Please select a model."
	case errors.Is(err, ErrVisionUnsupported):
		return "The selected model does not support images. Please choose a vision-capable model or remove the images."
	case errors.Is(err, ErrUnknownChat):
		return "This chat no longer exists."
	case errors.Is(err, ErrUnknownModel):
		return "This model is not available."
	case errors.Is(err, context.Canceled), errors.Is(err, gateway.ErrStreamClosed):
		return "The request was cancelled."
	case errors.Is(err, context.DeadlineExceeded):
		return "The server took too long to answer. Please try again."
	case errors.As(err, &validationErr):
		return validationErr.Reason
	case errors.As(err, &gatewayErr):
		// A message sent by the backend is shown as is, even when tagged.
		if gatewayErr.Kind == gateway.KindMessage || gatewayErr.Detail != "" {
			return truncate(gatewayErr.Detail, maxErrorLength)
		}
		if description, ok := kindToDescription[gatewayErr.Kind]; ok {
			return description
		}
	}
	return truncate("An unexpected error occurred: "+errors.Cause(err).Error(), maxErrorLength)
}

// truncate s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
