package gateway

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Kind of a classified backend failure.
type Kind int

const (
	KindNetwork Kind = iota + 1
	KindVisionNotSupported
	KindImageTooLarge
	KindInvalidImage
	// KindMessage carries a message extracted from the response body.
	KindMessage
	KindRateLimit
	KindModelNotFound
	KindServer
)

var kindToTag = map[Kind]string{
	KindNetwork:            "NETWORK_ERROR",
	KindVisionNotSupported: "VISION_NOT_SUPPORTED",
	KindImageTooLarge:      "IMAGE_TOO_LARGE",
	KindInvalidImage:       "INVALID_IMAGE",
	KindMessage:            "MESSAGE",
	KindRateLimit:          "RATE_LIMIT",
	KindModelNotFound:      "MODEL_NOT_FOUND",
	KindServer:             "SERVER_ERROR",
}

// String returns the tag of the kind.
func (k Kind) String() string {
	if tag, ok := kindToTag[k]; ok {
		return tag
	}
	return fmt.Sprintf("KIND_%d", int(k))
}

// Error is a classified backend failure.
type Error struct {
	Kind Kind
	// HTTP status, zero for transport failures.
	Status int
	// Message extracted from the response body, if any.
	Detail string
	// Underlying transport failure, if any.
	Err error
}

func (e *Error) Error() string {
	switch {
	case e.Detail != "":
		return e.Detail
	case e.Err != nil:
		return e.Kind.String() + ": " + e.Err.Error()
	default:
		return e.Kind.String()
	}
}

func (e *Error) Unwrap() error { return e.Err }

// HTTPError is a failed response the classification could not make sense of.
type HTTPError struct {
	Status int
	Body   []byte
}

func (e *HTTPError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if body == "" {
		return fmt.Sprintf("unexpected status %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("unexpected status %d %s: %s", e.Status, http.StatusText(e.Status), body)
}

var (
	imageSizePattern    = regexp.MustCompile(`\btoo (large|big)\b|\bexceed(s|ed|ing)?\b|\bmaximum size\b|\bsize limit\b`)
	invalidImagePattern = regexp.MustCompile(`\b(invalid|unsupported|corrupt(ed)?|malformed|format|decode)\b`)
)

// classify a failed response. The rules are applied in order and the first
// match wins.
func classify(status int, body []byte) error {
	lower := strings.ToLower(string(body))
	message := extractMessage(body)

	// Image and vision validation failures. The extracted message, if any, is
	// kept as the detail of the tagged error.
	switch {
	case strings.Contains(lower, "vision") && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		return &Error{Kind: KindVisionNotSupported, Status: status, Detail: message}
	case strings.Contains(lower, "image") && (status == http.StatusRequestEntityTooLarge ||
		imageSizePattern.MatchString(lower) && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity)):
		return &Error{Kind: KindImageTooLarge, Status: status, Detail: message}
	case strings.Contains(lower, "image") && invalidImagePattern.MatchString(lower) &&
		(status == http.StatusBadRequest || status == http.StatusUnsupportedMediaType || status == http.StatusUnprocessableEntity):
		return &Error{Kind: KindInvalidImage, Status: status, Detail: message}
	}

	if message != "" {
		return &Error{Kind: KindMessage, Status: status, Detail: message}
	}
	if status == http.StatusBadRequest {
		if whole := strings.TrimSpace(string(body)); whole != "" {
			return &Error{Kind: KindMessage, Status: status, Detail: whole}
		}
	}

	switch {
	case status == http.StatusTooManyRequests:
		return &Error{Kind: KindRateLimit, Status: status}
	case status == http.StatusNotFound:
		return &Error{Kind: KindModelNotFound, Status: status}
	case status >= http.StatusInternalServerError:
		return &Error{Kind: KindServer, Status: status}
	}
	return &HTTPError{Status: status, Body: body}
}

// extractMessage returns, in order of preference, the `message` field of a
// JSON object, a plain string body or the `error` field of a JSON object.
func extractMessage(body []byte) string {
	trimmed := strings.TrimSpace(string(body))
	if trimmed == "" {
		return ""
	}
	if !gjson.Valid(trimmed) {
		return trimmed
	}
	result := gjson.Parse(trimmed)
	switch {
	case result.Type == gjson.String:
		return result.String()
	case !result.IsObject():
		return ""
	}
	if message := result.Get("message"); message.Type == gjson.String && message.String() != "" {
		return message.String()
	}
	errorField := result.Get("error")
	switch {
	case errorField.Type == gjson.String:
		return errorField.String()
	case errorField.IsObject():
		if message := errorField.Get("message"); message.Type == gjson.String {
			return message.String()
		}
	}
	return ""
}
