package platform

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"invitegate/internal/model"
)

var ErrMissingPermission = errors.New("missing permission to list guild invites")

// Client talks to the platform REST API with bot-token authentication.
// It only covers the two read endpoints attribution needs: the invite
// list and the guild preview.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

// NewClient creates a platform client for the given API base URL.
func NewClient(baseURL, token string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
	}
}

// ListInvites fetches the authoritative invite snapshot for the guild.
// HTTP 403 maps to ErrMissingPermission so callers can degrade to
// unknown attribution instead of treating it as a transport fault.
func (c *Client) ListInvites(ctx context.Context, guildID string) ([]model.Invite, error) {
	var invites []model.Invite
	if err := c.get(ctx, fmt.Sprintf("/guilds/%s/invites", guildID), &invites); err != nil {
		return nil, err
	}
	return invites, nil
}

// GetGuildPreview fetches the guild name and approximate member counts.
func (c *Client) GetGuildPreview(ctx context.Context, guildID string) (*model.GuildPreview, error) {
	var preview model.GuildPreview
	if err := c.get(ctx, fmt.Sprintf("/guilds/%s/preview", guildID), &preview); err != nil {
		return nil, err
	}
	return &preview, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building platform request: %w", err)
	}
	req.Header.Set("Authorization", "Bot "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("calling platform API: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("GET %s: %w", path, ErrMissingPermission)
	case resp.StatusCode != http.StatusOK:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("platform API returned %d for %s: %s", resp.StatusCode, path, body)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding platform response: %w", err)
	}
	return nil
}
