// Package social posts the agent's narration to Farcaster through the Neynar
// API and reads back its mentions.
package social

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"hermitbase/internal/logging"
)

// MaxPostLength keeps casts safely under Farcaster's 320 byte limit.
const MaxPostLength = 300

// Mention is a cast that mentions or replies to the agent.
type Mention struct {
	ID           string
	Text         string
	AuthorHandle string
	AuthorFID    int64
	Timestamp    time.Time
}

// Client is the social feed. Neither method reports errors: a failed post
// returns ok=false and a failed fetch returns no mentions.
type Client interface {
	Post(ctx context.Context, text, parent string) (hash string, ok bool)
	FetchMentions(ctx context.Context, cursor string) []Mention
}

// NeynarConfig configures the Neynar client.
type NeynarConfig struct {
	APIKey     string
	SignerUUID string
	FID        int64
	BaseURL    string
	Timeout    time.Duration
}

// DefaultNeynarConfig returns the production endpoint and the agent's fid.
func DefaultNeynarConfig(apiKey, signerUUID string) NeynarConfig {
	return NeynarConfig{
		APIKey:     apiKey,
		SignerUUID: signerUUID,
		FID:        2730232,
		BaseURL:    "https://api.neynar.com/v2/farcaster",
		Timeout:    15 * time.Second,
	}
}

// NeynarClient implements Client over the Neynar v2 REST API.
type NeynarClient struct {
	apiKey     string
	signerUUID string
	fid        int64
	baseURL    string
	httpClient *http.Client
}

// NewNeynarClient creates a client from config.
func NewNeynarClient(config NeynarConfig) *NeynarClient {
	return &NeynarClient{
		apiKey:     config.APIKey,
		signerUUID: config.SignerUUID,
		fid:        config.FID,
		baseURL:    config.BaseURL,
		httpClient: &http.Client{Timeout: config.Timeout},
	}
}

type castRequest struct {
	SignerUUID string `json:"signer_uuid"`
	Text       string `json:"text"`
	Parent     string `json:"parent,omitempty"`
}

type castResponse struct {
	Cast struct {
		Hash string `json:"hash"`
	} `json:"cast"`
	Message string `json:"message"`
}

// Post publishes text, threaded under parent when it is set. The returned
// hash may be empty even when ok is true.
func (c *NeynarClient) Post(ctx context.Context, text, parent string) (string, bool) {
	hash, err := c.post(ctx, castRequest{
		SignerUUID: c.signerUUID,
		Text:       Truncate(text, MaxPostLength),
		Parent:     parent,
	})
	if err != nil {
		logging.Get(logging.CategorySocial).Error("Failed to post cast: %v", err)
		return "", false
	}
	if hash == "" {
		logging.Social("Cast posted")
	} else {
		logging.Social("Cast posted: %s", hash)
	}
	return hash, true
}

func (c *NeynarClient) post(ctx context.Context, body castRequest) (string, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/cast", bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	var parsed castResponse
	_ = json.Unmarshal(raw, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := parsed.Message
		if msg == "" {
			msg = string(raw)
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}
	return parsed.Cast.Hash, nil
}

type notificationsResponse struct {
	Notifications []struct {
		MostRecentTimestamp string `json:"most_recent_timestamp"`
		Cast                *struct {
			Hash      string `json:"hash"`
			Text      string `json:"text"`
			Timestamp string `json:"timestamp"`
			Author    struct {
				Username string `json:"username"`
				FID      int64  `json:"fid"`
			} `json:"author"`
		} `json:"cast"`
	} `json:"notifications"`
}

// FetchMentions returns recent mentions and replies, newest first as the API
// orders them. Notifications without cast text are dropped.
func (c *NeynarClient) FetchMentions(ctx context.Context, cursor string) []Mention {
	mentions, err := c.fetchMentions(ctx, cursor)
	if err != nil {
		logging.Get(logging.CategorySocial).Error("Failed to fetch mentions: %v", err)
		return []Mention{}
	}
	logging.SocialDebug("Fetched %d mentions", len(mentions))
	return mentions
}

func (c *NeynarClient) fetchMentions(ctx context.Context, cursor string) ([]Mention, error) {
	params := url.Values{}
	params.Set("fid", strconv.FormatInt(c.fid, 10))
	params.Set("type", "mentions,replies")
	if cursor != "" {
		params.Set("cursor", cursor)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/notifications?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(raw))
	}

	var parsed notificationsResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	mentions := make([]Mention, 0, len(parsed.Notifications))
	for _, n := range parsed.Notifications {
		if n.Cast == nil || n.Cast.Text == "" {
			continue
		}
		author := n.Cast.Author.Username
		if author == "" {
			author = "unknown"
		}
		ts := n.Cast.Timestamp
		if ts == "" {
			ts = n.MostRecentTimestamp
		}
		parsedTS, _ := time.Parse(time.RFC3339, ts)
		mentions = append(mentions, Mention{
			ID:           n.Cast.Hash,
			Text:         n.Cast.Text,
			AuthorHandle: author,
			AuthorFID:    n.Cast.Author.FID,
			Timestamp:    parsedTS,
		})
	}
	return mentions, nil
}

// Truncate shortens s to at most max runes, marking the cut with "...".
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}
