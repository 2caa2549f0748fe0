package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/malonaz/madlen/internal/types"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(&Opts{BaseURL: server.URL + "/api/"})
}

func TestListModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/models", r.URL.Path)
		w.Write([]byte(`[
			{"id": "m1", "name": "Model 1", "description": "first", "available": true, "supportsVision": true},
			{"id": "m2", "name": "Model 2", "available": false},
			{"name": "no id"}
		]`))
	})

	models, err := client.ListModels(context.Background())
	require.NoError(t, err)
	require.Equal(t, []*types.Model{
		{ID: "m1", Name: "Model 1", Description: "first", Free: true, SupportsVision: true},
		{ID: "m2", Name: "Model 2"},
	}, models)
}

func TestListVisionModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/models/vision", r.URL.Path)
		w.Write([]byte(`[{"id": "v1", "name": "Vision", "available": true}]`))
	})

	models, err := client.ListVisionModels(context.Background())
	require.NoError(t, err)
	require.Len(t, models, 1)
	require.True(t, models[0].SupportsVision)
	require.True(t, models[0].Free)
}

func TestSupportsVision(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/models/yes/supports-vision":
			w.Write([]byte(`true`))
		case "/api/models/object/supports-vision":
			w.Write([]byte(`{"supportsVision": true}`))
		case "/api/models/no/supports-vision":
			w.Write([]byte(`false`))
		default:
			w.WriteHeader(http.StatusInternalServerError)
		}
	})

	ctx := context.Background()
	require.True(t, client.SupportsVision(ctx, "yes"))
	require.True(t, client.SupportsVision(ctx, "object"))
	require.False(t, client.SupportsVision(ctx, "no"))
	require.False(t, client.SupportsVision(ctx, "broken"))

	unreachable := NewClient(&Opts{BaseURL: "http://127.0.0.1:1/api"})
	require.False(t, unreachable.SupportsVision(ctx, "yes"))
}

func TestCreateSession(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/sessions", r.URL.Path)
		require.Equal(t, "application/json", r.Header.Get("Content-Type"))
		request := map[string]string{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&request))
		require.Equal(t, map[string]string{"userId": "demo-user", "model": "m1"}, request)
		w.Write([]byte(`{"id": "s1", "selectedModel": "m1", "createdAt": "2024-05-01T10:00:00Z", "updatedAt": 1714557600000}`))
	})

	chat, err := client.CreateSession(context.Background(), "demo-user", "m1")
	require.NoError(t, err)
	require.Equal(t, "s1", chat.ID)
	require.Equal(t, types.DefaultChatTitle, chat.Title)
	require.Equal(t, "m1", chat.Model)
	require.Empty(t, chat.Messages)
	require.True(t, chat.CreatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
	require.True(t, chat.UpdatedAt.Equal(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)))
}

func TestListSessions(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/sessions", r.URL.Path)
		require.Equal(t, "demo user", r.URL.Query().Get("userId"))
		w.Write([]byte(`[{
			"id": "s1",
			"title": "Hello",
			"selectedModel": "m1",
			"createdAt": "2024-05-01T10:00:00.123",
			"messages": [
				{"role": "user", "content": "hi", "timestamp": "2024-05-01T10:00:01Z", "images": [{"type": "url", "data": "https://x/cat.png", "mediaType": "image/png"}]},
				{"role": "assistant", "content": "hello"}
			]
		}]`))
	})

	before := time.Now()
	chats, err := client.ListSessions(context.Background(), "demo user")
	require.NoError(t, err)
	require.Len(t, chats, 1)
	chat := chats[0]
	require.Equal(t, "Hello", chat.Title)
	require.Equal(t, 2024, chat.CreatedAt.Year())
	require.Len(t, chat.Messages, 2)
	require.Equal(t, types.RoleUser, chat.Messages[0].Role)
	require.Equal(t, []types.ImageContent{{Type: types.ImageTypeURL, Data: "https://x/cat.png", MediaType: "image/png"}}, chat.Messages[0].Images)
	require.Equal(t, types.RoleAssistant, chat.Messages[1].Role)
	require.False(t, chat.Messages[1].Timestamp.Before(before))
	require.True(t, strings.HasPrefix(chat.Messages[0].ID, "msg-"))
	require.NotEqual(t, chat.Messages[0].ID, chat.Messages[1].ID)
}

func TestDeleteSession(t *testing.T) {
	called := false
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		require.Equal(t, http.MethodDelete, r.Method)
		require.Equal(t, "/api/sessions/s 1", r.URL.Path)
		require.Equal(t, "u1", r.URL.Query().Get("userId"))
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteSession(context.Background(), "s 1", "u1"))
	require.True(t, called)
}

func TestSendMessage(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/chat", r.URL.Path)
		request := &chatRequest{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(request))
		require.Equal(t, "s1", request.SessionID)
		require.Equal(t, "describe", request.Message)
		require.Equal(t, "m1", request.Model)
		require.Equal(t, []types.ImageContent{{Type: types.ImageTypeBase64, Data: "AAAA", MediaType: "image/png"}}, request.Images)
		w.Write([]byte(`{"assistantMessage": {"role": "assistant", "content": "a cat"}, "sessionId": "s1"}`))
	})

	response, err := client.SendMessage(context.Background(), &SendMessageRequest{
		SessionID: "s1",
		Message:   "describe",
		Model:     "m1",
		Images:    []types.ImageContent{{Type: types.ImageTypeBase64, Data: "AAAA", MediaType: "image/png"}},
	})
	require.NoError(t, err)
	require.Equal(t, "s1", response.SessionID)
	require.Equal(t, types.RoleAssistant, response.AssistantMessage.Role)
	require.Equal(t, "a cat", response.AssistantMessage.Content)
	require.False(t, response.AssistantMessage.Timestamp.IsZero())
}

func TestSendMessageOmitsEmptyFields(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.JSONEq(t, `{"sessionId": "s1", "message": "hi"}`, string(body))
		w.Write([]byte(`{"assistantMessage": {"role": "assistant", "content": "hey"}}`))
	})

	response, err := client.SendMessage(context.Background(), &SendMessageRequest{SessionID: "s1", Message: "hi"})
	require.NoError(t, err)
	require.Equal(t, "s1", response.SessionID)
}

func TestSendMessageRateLimited(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := client.SendMessage(context.Background(), &SendMessageRequest{SessionID: "s1", Message: "hi"})
	var gatewayErr *Error
	require.True(t, errors.As(err, &gatewayErr))
	require.Equal(t, KindRateLimit, gatewayErr.Kind)
	require.Equal(t, http.StatusTooManyRequests, gatewayErr.Status)
}

func TestNetworkError(t *testing.T) {
	client := NewClient(&Opts{BaseURL: "http://127.0.0.1:1/api"})
	_, err := client.ListModels(context.Background())
	var gatewayErr *Error
	require.True(t, errors.As(err, &gatewayErr))
	require.Equal(t, KindNetwork, gatewayErr.Kind)
	require.Error(t, gatewayErr.Err)
}

func TestCancelledRequest(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.ListModels(ctx)
	require.ErrorIs(t, err, context.Canceled)
}
