// Package httpapi implements remote.Client over the asset API's HTTP
// protocol: GET {base}/asset/{path}?ref={ref} returning a JSON envelope
// with utf-8 or base64 content.
package httpapi

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/unkn0wn-root/confcascade/remote"
)

const defaultTimeout = 30 * time.Second

type Client struct {
	base  *url.URL
	hc    *http.Client
	token string
}

var _ remote.Client = (*Client)(nil)

type Config struct {
	// BaseURL of the asset API, e.g. "https://assets.example.com/api/v1".
	BaseURL string
	// HTTPClient to use; nil gets a client with a 30s timeout. The per-call
	// context still bounds individual requests.
	HTTPClient *http.Client
	// Token, when set, is sent as a bearer Authorization header.
	Token string
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("httpapi: base URL is required")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("httpapi: parse base URL: %w", err)
	}
	hc := cfg.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{base: base, hc: hc, token: cfg.Token}, nil
}

// assetEnvelope is the wire shape of a 2xx response.
type assetEnvelope struct {
	Path        string `json:"path"`
	Content     string `json:"content"`
	Encoding    string `json:"encoding"` // "utf-8" (default) or "base64"
	ContentHash string `json:"contentHash"`
	Size        int64  `json:"size"`
}

// errorEnvelope is the wire shape of an error response; plain-text bodies
// are used verbatim when it does not apply.
type errorEnvelope struct {
	Message string `json:"message"`
}

func (c *Client) FetchAsset(ctx context.Context, path, ref string) (*remote.Asset, error) {
	u := c.assetURL(path, ref)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("httpapi: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("httpapi: GET %s: %w", u, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, mapStatus(resp.StatusCode, readMessage(resp.Body))
	}

	var env assetEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("httpapi: decode asset envelope: %w", err)
	}
	content := []byte(env.Content)
	if strings.EqualFold(env.Encoding, "base64") {
		content, err = base64.StdEncoding.DecodeString(env.Content)
		if err != nil {
			return nil, fmt.Errorf("httpapi: decode base64 content: %w", err)
		}
	}
	return &remote.Asset{
		Path:        env.Path,
		Content:     content,
		ContentHash: env.ContentHash,
		Size:        env.Size,
	}, nil
}

func (c *Client) assetURL(path, ref string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + "/asset/" + escapePath(path)
	if ref != "" {
		q := u.Query()
		q.Set("ref", ref)
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// escapePath escapes each segment but keeps the separators, so nested asset
// paths like "configs/prod/app.json" survive routing.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func mapStatus(status int, msg string) error {
	switch status {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", remote.ErrNotFound, msg)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w: %s", remote.ErrUnauthorized, msg)
	case http.StatusForbidden:
		return fmt.Errorf("%w: %s", remote.ErrForbidden, msg)
	default:
		return &remote.APIError{Status: status, Message: msg}
	}
}

func readMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4<<10))
	if err != nil || len(body) == 0 {
		return "no response body"
	}
	var env errorEnvelope
	if json.Unmarshal(body, &env) == nil && env.Message != "" {
		return env.Message
	}
	return strings.TrimSpace(string(body))
}
