// Package api is the REST client for the AgriGrow backend: auth, chat and
// product endpoints, JSON envelopes, bearer-token auth.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/agrigrow/agrichat/pkg/chat"
)

// ErrUnauthorized is returned when the backend rejects the bearer token.
// The surrounding app must drop back to an unauthenticated state.
var ErrUnauthorized = errors.New("unauthorized")

// RequestError is a backend rejection: an HTTP error status or a
// success:false envelope.
type RequestError struct {
	Status  int
	Message string
}

func (e *RequestError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api request failed (%d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("api request failed (%d)", e.Status)
}

// Client talks to the AgriGrow REST API. It is safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SetToken installs the bearer token attached to subsequent requests.
func (c *Client) SetToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = token
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (User, error) {
	env, err := c.do(ctx, http.MethodPost, "/auth/register", req)
	if err != nil {
		return User{}, err
	}
	var user User
	if len(env.User) > 0 {
		if err := json.Unmarshal(env.User, &user); err != nil {
			return User{}, fmt.Errorf("decoding user: %w", err)
		}
	}
	return user, nil
}

// Login authenticates and returns the session token with the user profile.
func (c *Client) Login(ctx context.Context, email, password string) (string, User, error) {
	body := map[string]string{"email": email, "password": password}
	env, err := c.do(ctx, http.MethodPost, "/auth/login", body)
	if err != nil {
		return "", User{}, err
	}

	var user User
	if err := json.Unmarshal(env.User, &user); err != nil {
		return "", User{}, fmt.Errorf("decoding user: %w", err)
	}
	return env.Token, user, nil
}

// Me returns the authenticated user's profile.
func (c *Client) Me(ctx context.Context) (User, error) {
	env, err := c.do(ctx, http.MethodGet, "/auth/me", nil)
	if err != nil {
		return User{}, err
	}
	var user User
	raw := env.Data
	if len(raw) == 0 {
		raw = env.User
	}
	if err := json.Unmarshal(raw, &user); err != nil {
		return User{}, fmt.Errorf("decoding user: %w", err)
	}
	return user, nil
}

// UpdateProfile updates mutable profile fields and returns the new profile.
func (c *Client) UpdateProfile(ctx context.Context, user User) (User, error) {
	env, err := c.do(ctx, http.MethodPut, "/auth/profile", user)
	if err != nil {
		return User{}, err
	}
	var updated User
	raw := env.Data
	if len(raw) == 0 {
		raw = env.User
	}
	if err := json.Unmarshal(raw, &updated); err != nil {
		return User{}, fmt.Errorf("decoding user: %w", err)
	}
	return updated, nil
}

// Participants lists the users the caller can chat with.
func (c *Client) Participants(ctx context.Context) ([]Participant, error) {
	env, err := c.do(ctx, http.MethodGet, "/chat/participants", nil)
	if err != nil {
		return nil, err
	}
	var participants []Participant
	if err := json.Unmarshal(env.Data, &participants); err != nil {
		return nil, fmt.Errorf("decoding participants: %w", err)
	}
	return participants, nil
}

// Messages fetches the ordered history for the conversation with
// participantID.
func (c *Client) Messages(ctx context.Context, participantID string) ([]chat.Message, error) {
	env, err := c.do(ctx, http.MethodGet, "/chat/messages/"+participantID, nil)
	if err != nil {
		return nil, err
	}
	var rows []wireMessage
	if err := json.Unmarshal(env.Data, &rows); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	out := make([]chat.Message, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.toMessage())
	}
	return out, nil
}

// SendMessage persists a message and returns the server's copy.
func (c *Client) SendMessage(ctx context.Context, receiverID, body string) (chat.Message, error) {
	payload := map[string]string{"receiverId": receiverID, "message": body}
	env, err := c.do(ctx, http.MethodPost, "/chat/send", payload)
	if err != nil {
		return chat.Message{}, err
	}
	var row wireMessage
	if err := json.Unmarshal(env.Data, &row); err != nil {
		return chat.Message{}, fmt.Errorf("decoding message: %w", err)
	}
	return row.toMessage(), nil
}

// Products lists marketplace products.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	env, err := c.do(ctx, http.MethodGet, "/products", nil)
	if err != nil {
		return nil, err
	}
	var products []Product
	if err := json.Unmarshal(env.Data, &products); err != nil {
		return nil, fmt.Errorf("decoding products: %w", err)
	}
	return products, nil
}

// Product fetches a single listing.
func (c *Client) Product(ctx context.Context, id string) (Product, error) {
	env, err := c.do(ctx, http.MethodGet, "/products/"+id, nil)
	if err != nil {
		return Product{}, err
	}
	var product Product
	if err := json.Unmarshal(env.Data, &product); err != nil {
		return Product{}, fmt.Errorf("decoding product: %w", err)
	}
	return product, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*envelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.mu.RLock()
	token := c.token
	c.mu.RUnlock()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrUnauthorized
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}

	if resp.StatusCode >= 400 || !env.Success {
		return nil, &RequestError{Status: resp.StatusCode, Message: env.Message}
	}

	return &env, nil
}
