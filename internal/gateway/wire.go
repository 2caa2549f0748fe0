package gateway

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/malonaz/madlen/internal/types"
)

// Layouts accepted for textual timestamps. Fractional seconds are accepted by all of them.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// wireTime accepts RFC 3339 strings, zone-less ISO strings or epoch milliseconds.
// Unparseable values decode to the zero time.
type wireTime struct {
	time.Time
}

func (t *wireTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		t.Time = time.Time{}
		return nil
	}
	if data[0] != '"' {
		milliseconds, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return errors.Wrapf(err, "parsing timestamp %s", data)
		}
		t.Time = time.UnixMilli(int64(milliseconds))
		return nil
	}
	value, err := strconv.Unquote(string(data))
	if err != nil {
		return errors.Wrapf(err, "parsing timestamp %s", data)
	}
	t.Time = parseTime(value)
	return nil
}

func parseTime(value string) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed
		}
	}
	if milliseconds, err := strconv.ParseInt(value, 10, 64); err == nil {
		return time.UnixMilli(milliseconds)
	}
	return time.Time{}
}

func (t wireTime) orDefault(fallback time.Time) time.Time {
	if t.IsZero() {
		return fallback
	}
	return t.Time
}

type wireModel struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Description    string `json:"description"`
	Available      bool   `json:"available"`
	SupportsVision bool   `json:"supportsVision"`
}

func toModels(wireModels []*wireModel) []*types.Model {
	models := make([]*types.Model, 0, len(wireModels))
	for _, m := range wireModels {
		if m == nil || m.ID == "" {
			continue
		}
		models = append(models, &types.Model{
			ID:             m.ID,
			Name:           m.Name,
			Description:    m.Description,
			Free:           m.Available,
			SupportsVision: m.SupportsVision,
		})
	}
	return models
}

type wireMessage struct {
	ID        string               `json:"id"`
	Role      string               `json:"role"`
	Content   string               `json:"content"`
	Timestamp wireTime             `json:"timestamp"`
	Images    []types.ImageContent `json:"images"`
}

// toMessage maps a backend message. Messages without an id get a render-only
// id built from the current time and their index.
func (m *wireMessage) toMessage(now time.Time, index int) *types.Message {
	id := m.ID
	if id == "" {
		id = fmt.Sprintf("msg-%d-%d", now.UnixNano(), index)
	}
	role := types.Role(strings.ToLower(m.Role))
	if !role.Valid() {
		role = types.RoleAssistant
	}
	var images []types.ImageContent
	if len(m.Images) > 0 {
		images = append(images, m.Images...)
	}
	return &types.Message{
		ID:        id,
		Role:      role,
		Content:   m.Content,
		Timestamp: m.Timestamp.orDefault(now),
		Images:    images,
	}
}

type wireSession struct {
	ID            string         `json:"id"`
	Title         string         `json:"title"`
	SelectedModel string         `json:"selectedModel"`
	CreatedAt     wireTime       `json:"createdAt"`
	UpdatedAt     wireTime       `json:"updatedAt"`
	Messages      []*wireMessage `json:"messages"`
}

func (s *wireSession) toChat(now time.Time) *types.Chat {
	title := s.Title
	if title == "" {
		title = types.DefaultChatTitle
	}
	messages := make([]*types.Message, 0, len(s.Messages))
	for i, message := range s.Messages {
		if message == nil {
			continue
		}
		messages = append(messages, message.toMessage(now, i))
	}
	createdAt := s.CreatedAt.orDefault(now)
	return &types.Chat{
		ID:        s.ID,
		Title:     title,
		Messages:  messages,
		Model:     s.SelectedModel,
		CreatedAt: createdAt,
		UpdatedAt: s.UpdatedAt.orDefault(createdAt),
	}
}

type createSessionRequest struct {
	UserID string `json:"userId"`
	Model  string `json:"model"`
}

type chatRequest struct {
	SessionID string               `json:"sessionId"`
	Message   string               `json:"message"`
	Model     string               `json:"model,omitempty"`
	Images    []types.ImageContent `json:"images,omitempty"`
}

func toChatRequest(request *SendMessageRequest) *chatRequest {
	return &chatRequest{
		SessionID: request.SessionID,
		Message:   request.Message,
		Model:     request.Model,
		Images:    request.Images,
	}
}

type chatResponse struct {
	AssistantMessage *wireMessage `json:"assistantMessage"`
	SessionID        string       `json:"sessionId"`
}
