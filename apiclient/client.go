// Package apiclient talks to the separate backend API (profiles, stats,
// friends, leaderboard). The room core treats it as a fire-and-forget
// results sink and a friends/presence source; the state machine works even
// when it is down.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/InfiniteDev0/JoinUp/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

// GameResult is the per-session summary shipped to the stats backend once a
// room finishes.
type GameResult struct {
	RoomCode string         `json:"roomCode"`
	GameID   int            `json:"gameId"`
	GameName string         `json:"gameName"`
	Category string         `json:"category"`
	Players  []PlayerResult `json:"players"`
	Winner   domain.User    `json:"winner"`
	Duration int            `json:"duration"`
}

type PlayerResult struct {
	UID         string `json:"uid"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoURL"`
	Score       int    `json:"score"`
	IsWinner    bool   `json:"isWinner"`
	IsImposter  bool   `json:"isImposter"`
}

func (c *Client) GetUser(ctx context.Context, uid string) (domain.User, error) {
	var user domain.User
	err := c.getJSON(ctx, "/user/"+url.PathEscape(uid), &user)
	if err != nil {
		return domain.User{}, err
	}
	if user.UID == "" {
		return domain.User{}, domain.ErrUserNotFound
	}
	return user, nil
}

// SaveGameResult ships a finished game to the stats backend. Callers treat
// failures as ignorable: results feed the leaderboard, not the state machine.
func (c *Client) SaveGameResult(ctx context.Context, result GameResult) error {
	return c.postJSON(ctx, "/game/save", result)
}

// UpdateCurrentRoom records which room a user currently sits in, for the
// friends' active-rooms view. Empty roomID clears it.
func (c *Client) UpdateCurrentRoom(ctx context.Context, uid, roomID string) error {
	body := map[string]any{"roomId": roomID}
	if roomID == "" {
		body["roomId"] = nil
	}
	return c.putJSON(ctx, "/user/"+url.PathEscape(uid)+"/room", body)
}

// SendGameInvite asks the backend to notify a friend about a joinable room.
func (c *Client) SendGameInvite(ctx context.Context, fromUID, toUID, roomID, gameName string) error {
	return c.postJSON(ctx, "/friends/invite", map[string]string{
		"fromUid":  fromUID,
		"toUid":    toUID,
		"roomId":   roomID,
		"gameName": gameName,
	})
}

// GetFriends returns the user's friends list (presence source for invites).
func (c *Client) GetFriends(ctx context.Context, uid string) ([]domain.User, error) {
	var friends []domain.User
	if err := c.getJSON(ctx, "/friends/"+url.PathEscape(uid), &friends); err != nil {
		return nil, err
	}
	return friends, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) postJSON(ctx context.Context, path string, body any) error {
	return c.sendJSON(ctx, http.MethodPost, path, body)
}

func (c *Client) putJSON(ctx context.Context, path string, body any) error {
	return c.sendJSON(ctx, http.MethodPut, path, body)
}

func (c *Client) sendJSON(ctx context.Context, method, path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, nil)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.UnexpectedBackendError, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: status %d", domain.UnexpectedBackendError, resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
