package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/unklstewy/radarfusion/pkg/adsb"
)

var (
	// ErrNotFound is returned when the server answers 404.
	ErrNotFound = errors.New("not found")
	// ErrUnauthorized is returned when the server answers 401 or 403.
	ErrUnauthorized = errors.New("unauthorized")
)

// Client talks to a radarfusion server.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

// NewClient creates a client for baseURL, e.g. http://localhost:8080.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// SetToken sets the bearer token sent with every request.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Login obtains an operator token and uses it for later requests.
func (c *Client) Login(ctx context.Context, username, password string) error {
	var out LoginResponse
	req := LoginRequest{Username: username, Password: password}
	if err := c.do(ctx, http.MethodPost, "/api/v1/auth/login", req, &out); err != nil {
		return err
	}
	c.token = out.Token
	return nil
}

// Snapshot fetches the latest snapshot.
func (c *Client) Snapshot(ctx context.Context) (*SnapshotDTO, error) {
	var out SnapshotDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/aircraft", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Aircraft fetches one aircraft by render ID.
func (c *Client) Aircraft(ctx context.Context, id string) (*AircraftDTO, error) {
	var out AircraftDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/aircraft/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Sources fetches the feed statuses, highest priority first.
func (c *Client) Sources(ctx context.Context) ([]SourceDTO, error) {
	var out struct {
		Sources []SourceDTO `json:"sources"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/v1/sources", nil, &out); err != nil {
		return nil, err
	}
	return out.Sources, nil
}

// DisableSource stops a feed and returns how many aircraft were dropped.
func (c *Client) DisableSource(ctx context.Context, src adsb.Source) (int, error) {
	var out struct {
		Removed int `json:"aircraft_removed"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/v1/sources/"+string(src)+"/disable", nil, &out); err != nil {
		return 0, err
	}
	return out.Removed, nil
}

// EnableSource resumes a feed.
func (c *Client) EnableSource(ctx context.Context, src adsb.Source) error {
	return c.do(ctx, http.MethodPost, "/api/v1/sources/"+string(src)+"/enable", nil, nil)
}

// Stream calls fn for every snapshot pushed over the websocket until ctx
// is done or the connection fails.
func (c *Client) Stream(ctx context.Context, fn func(SnapshotDTO)) error {
	url := "ws" + strings.TrimPrefix(c.baseURL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect websocket: %w", err)
	}
	defer conn.Close()

	go func() {
		<-ctx.Done()
		conn.Close()
	}()

	for {
		var snap SnapshotDTO
		if err := conn.ReadJSON(&snap); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if websocket.IsCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				return nil
			}
			return fmt.Errorf("failed to read snapshot: %w", err)
		}
		fn(snap)
	}
}

func (c *Client) do(ctx context.Context, method, path string, in, out interface{}) error {
	var body bytes.Buffer
	if in != nil {
		if err := json.NewEncoder(&body).Encode(in); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthorized)
	}
	if resp.StatusCode != http.StatusOK {
		var body struct {
			Error string `json:"error"`
		}
		json.NewDecoder(resp.Body).Decode(&body)
		return fmt.Errorf("%s %s: status %d: %s", method, path, resp.StatusCode, body.Error)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
