// Package gateway talks to the chat backend over its REST interface and maps
// the backend's shapes to the client's view models.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/malonaz/madlen/internal/debug"
	"github.com/malonaz/madlen/internal/types"
)

// DefaultBaseURL of the backend.
const DefaultBaseURL = "http://localhost:8080/api"

// maxErrorBodySize caps how much of a failed response is read for classification.
const maxErrorBodySize = 1 << 20

// Opts for the gateway client.
type Opts struct {
	// Base URL of the backend, including the `/api` prefix.
	BaseURL string
	// Client used for requests. Defaults to http.DefaultClient.
	HTTPClient *http.Client
}

// GetOpts registers the gateway flags on the given command.
func GetOpts(cmd *cobra.Command, defaultBaseURL string) *Opts {
	opts := &Opts{}
	cmd.PersistentFlags().StringVar(&opts.BaseURL, "api-url", defaultBaseURL, "base url of the chat backend")
	return opts
}

// SendMessageRequest is the payload of a chat turn.
type SendMessageRequest struct {
	SessionID string
	Message   string
	// Optional, the backend uses the session's model when empty.
	Model  string
	Images []types.ImageContent
}

// SendMessageResponse holds the assistant reply to a chat turn.
type SendMessageResponse struct {
	AssistantMessage *types.Message
	SessionID        string
}

// Client for the chat backend.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient instantiates and returns a new client.
func NewClient(opts *Opts) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpClient,
	}
}

// ListModels returns the model catalog.
func (c *Client) ListModels(ctx context.Context) ([]*types.Model, error) {
	wireModels := []*wireModel{}
	if err := c.doJSON(ctx, http.MethodGet, "/models", nil, nil, &wireModels); err != nil {
		return nil, errors.Wrap(err, "listing models")
	}
	return toModels(wireModels), nil
}

// ListVisionModels returns the models accepting image attachments.
func (c *Client) ListVisionModels(ctx context.Context) ([]*types.Model, error) {
	wireModels := []*wireModel{}
	if err := c.doJSON(ctx, http.MethodGet, "/models/vision", nil, nil, &wireModels); err != nil {
		return nil, errors.Wrap(err, "listing vision models")
	}
	models := toModels(wireModels)
	for _, model := range models {
		model.SupportsVision = true
	}
	return models, nil
}

// SupportsVision returns true if the backend reports that the model accepts
// images. Any failure is reported as false.
func (c *Client) SupportsVision(ctx context.Context, modelID string) bool {
	response, err := c.do(ctx, http.MethodGet, "/models/"+url.PathEscape(modelID)+"/supports-vision", nil, nil)
	if err != nil {
		debug.GetLogger().Debug("checking vision support", "model", modelID, "error", err)
		return false
	}
	defer response.Body.Close()
	body, err := io.ReadAll(response.Body)
	if err != nil {
		return false
	}
	result := gjson.ParseBytes(body)
	if result.IsObject() {
		return result.Get("supportsVision").Bool()
	}
	return result.Type == gjson.True
}

// CreateSession creates a new empty chat for the user.
func (c *Client) CreateSession(ctx context.Context, userID, modelID string) (*types.Chat, error) {
	request := &createSessionRequest{UserID: userID, Model: modelID}
	session := &wireSession{}
	if err := c.doJSON(ctx, http.MethodPost, "/sessions", nil, request, session); err != nil {
		return nil, errors.Wrap(err, "creating session")
	}
	session.Messages = nil
	return session.toChat(time.Now()), nil
}

// ListSessions returns the chats of the user, with their messages.
func (c *Client) ListSessions(ctx context.Context, userID string) ([]*types.Chat, error) {
	sessions := []*wireSession{}
	query := url.Values{"userId": {userID}}
	if err := c.doJSON(ctx, http.MethodGet, "/sessions", query, nil, &sessions); err != nil {
		return nil, errors.Wrap(err, "listing sessions")
	}
	now := time.Now()
	chats := make([]*types.Chat, 0, len(sessions))
	for _, session := range sessions {
		if session == nil {
			continue
		}
		chats = append(chats, session.toChat(now))
	}
	return chats, nil
}

// DeleteSession deletes a chat of the user.
func (c *Client) DeleteSession(ctx context.Context, sessionID, userID string) error {
	query := url.Values{"userId": {userID}}
	if err := c.doJSON(ctx, http.MethodDelete, "/sessions/"+url.PathEscape(sessionID), query, nil, nil); err != nil {
		return errors.Wrap(err, "deleting session")
	}
	return nil
}

// SendMessage sends a chat turn and waits for the complete assistant reply.
func (c *Client) SendMessage(ctx context.Context, request *SendMessageRequest) (*SendMessageResponse, error) {
	response := &chatResponse{}
	if err := c.doJSON(ctx, http.MethodPost, "/chat", nil, toChatRequest(request), response); err != nil {
		return nil, errors.Wrap(err, "sending message")
	}
	if response.AssistantMessage == nil {
		return nil, errors.New("sending message: response has no assistant message")
	}
	sessionID := response.SessionID
	if sessionID == "" {
		sessionID = request.SessionID
	}
	return &SendMessageResponse{
		AssistantMessage: response.AssistantMessage.toMessage(time.Now(), 0),
		SessionID:        sessionID,
	}, nil
}

// StreamMessage sends a chat turn and returns the assistant reply as a stream
// of text fragments. The caller must close the stream.
func (c *Client) StreamMessage(ctx context.Context, request *SendMessageRequest) (Stream, error) {
	response, err := c.do(ctx, http.MethodPost, "/chat/stream", nil, toChatRequest(request))
	if err != nil {
		return nil, errors.Wrap(err, "streaming message")
	}
	return newBodyStream(ctx, response.Body), nil
}

// doJSON sends a request and decodes the response body into out, if set.
func (c *Client) doJSON(ctx context.Context, method, path string, query url.Values, in, out any) error {
	response, err := c.do(ctx, method, path, query, in)
	if err != nil {
		return err
	}
	defer response.Body.Close()
	if out == nil {
		_, err := io.Copy(io.Discard, response.Body)
		return errors.Wrap(err, "draining response")
	}
	if err := json.NewDecoder(response.Body).Decode(out); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// do sends a request. Failed responses are consumed and classified; on
// success the caller owns the response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, in any) (*http.Response, error) {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return nil, errors.Wrap(err, "marshaling request")
		}
		body = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, errors.Wrap(err, "creating request")
	}
	if in != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	logger := debug.GetLogger()
	start := time.Now()
	response, err := c.httpClient.Do(request)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		logger.Debug("backend request failed", "method", method, "path", path, "duration", time.Since(start), "error", err)
		return nil, &Error{Kind: KindNetwork, Err: err}
	}
	logger.Debug("backend request", "method", method, "path", path, "status", response.StatusCode, "duration", time.Since(start))
	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return response, nil
	}

	defer response.Body.Close()
	errorBody, err := io.ReadAll(io.LimitReader(response.Body, maxErrorBodySize))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Status: response.StatusCode, Err: err}
	}
	return nil, classify(response.StatusCode, errorBody)
}
