// Package remote talks to a "shotboard store" over HTTP. Client satisfies
// both catalog.TagRemote and catalog.PlaylistRemote.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"shotboard/internal/api"
	"shotboard/internal/catalog"
)

type Client struct {
	base   *url.URL
	http   *http.Client
	logger zerolog.Logger
}

// StatusError is a non-2xx answer from the store.
type StatusError struct {
	Status  int
	Code    string
	Message string
}

func (e *StatusError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("store answered %d", e.Status)
	}
	return fmt.Sprintf("store answered %d %s: %s", e.Status, e.Code, e.Message)
}

// Unwrap lets errors.Is match the catalog sentinels.
func (e *StatusError) Unwrap() error {
	switch e.Status {
	case http.StatusNotFound:
		return catalog.ErrNotFound
	case http.StatusConflict:
		return catalog.ErrDuplicateName
	}
	return nil
}

func New(baseURL string, timeout time.Duration, logger zerolog.Logger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse remote url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("remote url %q: scheme must be http or https", baseURL)
	}

	return &Client{
		base:   u,
		http:   &http.Client{Timeout: timeout},
		logger: logger.With().Str("component", "remote").Logger(),
	}, nil
}

// Ping checks the store is reachable.
func (c *Client) Ping(ctx context.Context) error {
	var resp api.StoreStatsResponse
	return c.do(ctx, http.MethodGet, c.endpoint("health"), nil, &resp)
}

func (c *Client) FetchAll(ctx context.Context) (map[string][]string, error) {
	var resp api.TagsResponse
	if err := c.do(ctx, http.MethodGet, c.endpoint("tags"), nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Tags), nil
}

func (c *Client) Add(ctx context.Context, shotID, tag string) ([]string, error) {
	var resp api.ShotTagsResponse
	err := c.do(ctx, http.MethodPost, c.endpoint("tags", shotID), api.TagRequest{Tag: tag}, &resp)
	return resp.Tags, err
}

func (c *Client) Remove(ctx context.Context, shotID, tag string) ([]string, error) {
	u := c.endpoint("tags", shotID)
	u.RawQuery = url.Values{"tag": {tag}}.Encode()

	var resp api.ShotTagsResponse
	err := c.do(ctx, http.MethodDelete, u, nil, &resp)
	return resp.Tags, err
}

func (c *Client) RenameGlobally(ctx context.Context, oldTag, newTag string) error {
	req := api.RenameTagRequest{Old: oldTag, New: newTag}
	return c.do(ctx, http.MethodPost, c.endpoint("tag-rename"), req, nil)
}

// Playlists adapts the client to catalog.PlaylistRemote, whose FetchAll
// collides with the tag side.
func (c *Client) Playlists() *PlaylistClient {
	return &PlaylistClient{c: c}
}

type PlaylistClient struct {
	c *Client
}

func (p *PlaylistClient) FetchAll(ctx context.Context) (map[string][]string, error) {
	var resp api.PlaylistsResponse
	if err := p.c.do(ctx, http.MethodGet, p.c.endpoint("playlists"), nil, &resp); err != nil {
		return nil, err
	}
	return orEmpty(resp.Playlists), nil
}

func (p *PlaylistClient) Create(ctx context.Context, name string) (catalog.Playlist, error) {
	var out catalog.Playlist
	err := p.c.do(ctx, http.MethodPost, p.c.endpoint("playlists"), api.NameRequest{Name: name}, &out)
	return out, err
}

func (p *PlaylistClient) Rename(ctx context.Context, name, newName string) (catalog.Playlist, error) {
	var out catalog.Playlist
	err := p.c.do(ctx, http.MethodPut, p.c.endpoint("playlists", name), api.NameRequest{Name: newName}, &out)
	return out, err
}

func (p *PlaylistClient) Delete(ctx context.Context, name string) error {
	return p.c.do(ctx, http.MethodDelete, p.c.endpoint("playlists", name), nil, nil)
}

func (p *PlaylistClient) AddShot(ctx context.Context, name, shotID string) (catalog.Playlist, error) {
	var out catalog.Playlist
	err := p.c.do(ctx, http.MethodPost, p.c.endpoint("playlists", name, "shots"), api.ShotRequest{ShotID: shotID}, &out)
	return out, err
}

func (p *PlaylistClient) RemoveShot(ctx context.Context, name, shotID string) (catalog.Playlist, error) {
	var out catalog.Playlist
	err := p.c.do(ctx, http.MethodDelete, p.c.endpoint("playlists", name, "shots", shotID), nil, &out)
	return out, err
}

// endpoint joins escaped path segments under /api/v1.
func (c *Client) endpoint(segments ...string) *url.URL {
	escaped := make([]string, 0, len(segments)+1)
	raw := make([]string, 0, len(segments)+1)
	escaped = append(escaped, "api/v1")
	raw = append(raw, "api/v1")
	for _, s := range segments {
		escaped = append(escaped, url.PathEscape(s))
		raw = append(raw, s)
	}

	u := *c.base
	u.Path = c.base.Path + "/" + strings.Join(raw, "/")
	u.RawPath = c.base.EscapedPath() + "/" + strings.Join(escaped, "/")
	return &u
}

func (c *Client) do(ctx context.Context, method string, u *url.URL, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	c.logger.Debug().
		Str("method", method).
		Str("path", u.Path).
		Int("status", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("store call")

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		serr := &StatusError{Status: resp.StatusCode}
		var payload api.ErrorResponse
		if json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&payload) == nil {
			serr.Code = payload.Error.Code
			serr.Message = payload.Error.Message
		}
		return serr
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, u.Path, err)
	}
	return nil
}

func orEmpty(m map[string][]string) map[string][]string {
	if m == nil {
		return map[string][]string{}
	}
	return m
}
