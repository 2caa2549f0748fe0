package types

import (
	"time"
)

// Role of a message author.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid returns true for the two known roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// ImageType tags how ImageContent.Data must be interpreted.
type ImageType string

const (
	// ImageTypeBase64 holds an inline base64 payload without data URI prefix.
	ImageTypeBase64 ImageType = "base64"
	// ImageTypeURL holds a reference to a remote image.
	ImageTypeURL ImageType = "url"
)

// ImageContent is one image attached to a message.
type ImageContent struct {
	Type      ImageType `json:"type"`
	Data      string    `json:"data"`
	MediaType string    `json:"mediaType"`
}

// Model is a selectable backend model.
type Model struct {
	ID             string
	Name           string
	Description    string
	Free           bool
	SupportsVision bool
}

// Label returns the name of the model, or its id if it has no name.
func (m *Model) Label() string {
	if m.Name != "" {
		return m.Name
	}
	return m.ID
}

// Message is one turn of a conversation.
//
// IDs of messages are only meant to key renders. They may be synthesized
// locally and must not be used for equality or deduplication.
type Message struct {
	ID        string
	Role      Role
	Content   string
	Timestamp time.Time
	Images    []ImageContent
}

// DefaultChatTitle is the title of a chat before its first message.
const DefaultChatTitle = "New chat"

// Chat is one conversation bound to a model.
type Chat struct {
	ID        string
	Title     string
	Messages  []*Message
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Clone returns a copy of the chat that shares no mutable slices with the original.
func (c *Chat) Clone() *Chat {
	if c == nil {
		return nil
	}
	clone := *c
	clone.Messages = make([]*Message, len(c.Messages))
	for i, message := range c.Messages {
		m := *message
		m.Images = append([]ImageContent(nil), message.Images...)
		clone.Messages[i] = &m
	}
	return &clone
}

// LastMessage returns the most recent message, or nil.
func (c *Chat) LastMessage() *Message {
	if len(c.Messages) == 0 {
		return nil
	}
	return c.Messages[len(c.Messages)-1]
}
