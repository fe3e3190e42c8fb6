package twitter

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/dghubble/oauth1"

	"github.com/wdbm/blocktogether/internal/types/account"
	"github.com/wdbm/blocktogether/internal/types/relationship"
)

const defaultBaseURL = "https://api.twitter.com/1.1"

// APIError is a non-2xx response from the platform. Payload keeps the raw
// response body so callers can log what the API actually said.
type APIError struct {
	StatusCode int
	Payload    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api error: status %d: %s", e.StatusCode, e.Payload)
}

type Client struct {
	oauthConfig *oauth1.Config
	baseURL     string
}

// NewClient initializes the platform client from the TWITTER_CONSUMER_KEY
// and TWITTER_CONSUMER_SECRET environment variables. Per-account access
// tokens are passed per call, the consumer pair is app-wide.
func NewClient() (*Client, error) {
	consumerKey := os.Getenv("TWITTER_CONSUMER_KEY")
	consumerSecret := os.Getenv("TWITTER_CONSUMER_SECRET")
	if consumerKey == "" || consumerSecret == "" {
		return nil, fmt.Errorf("TWITTER_CONSUMER_KEY and TWITTER_CONSUMER_SECRET must be set")
	}
	log.Println("Twitter client: initialized from environment")
	return NewClientWithConfig(consumerKey, consumerSecret, defaultBaseURL), nil
}

// NewClientWithConfig builds a client against an explicit base URL.
// Tests point this at an httptest server.
func NewClientWithConfig(consumerKey, consumerSecret, baseURL string) *Client {
	return &Client{
		oauthConfig: oauth1.NewConfig(consumerKey, consumerSecret),
		baseURL:     strings.TrimSuffix(baseURL, "/"),
	}
}

func (c *Client) httpClient(ctx context.Context, creds account.Credentials) *http.Client {
	token := oauth1.NewToken(creds.AccessToken, creds.AccessTokenSecret)
	client := c.oauthConfig.Client(ctx, token)
	client.Timeout = 30 * time.Second
	return client
}

// LookupRelationships performs one bulk friendships lookup for up to 100
// sink uids on behalf of the account owning creds. Uids absent from the
// response (suspended or deactivated accounts) are simply missing from
// the result.
func (c *Client) LookupRelationships(ctx context.Context, creds account.Credentials, sinkUIDs []string) ([]relationship.Relationship, error) {
	params := url.Values{}
	params.Set("user_id", strings.Join(sinkUIDs, ","))

	endpoint := c.baseURL + "/friendships/lookup.json?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build lookup request: %w", err)
	}

	resp, err := c.httpClient(ctx, creds).Do(req)
	if err != nil {
		return nil, fmt.Errorf("friendships lookup failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read lookup response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Payload: string(body)}
	}

	var relationships []relationship.Relationship
	if err := json.Unmarshal(body, &relationships); err != nil {
		return nil, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	return relationships, nil
}

// CreateBlock blocks one sink uid on behalf of the account owning creds.
// On success the API echoes the blocked user back.
func (c *Client) CreateBlock(ctx context.Context, creds account.Credentials, sinkUID string) (*relationship.Relationship, error) {
	params := url.Values{}
	params.Set("user_id", sinkUID)
	params.Set("skip_status", "true")

	endpoint := c.baseURL + "/blocks/create.json"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build block request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient(ctx, creds).Do(req)
	if err != nil {
		return nil, fmt.Errorf("block create failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read block response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &APIError{StatusCode: resp.StatusCode, Payload: string(body)}
	}

	blocked := &relationship.Relationship{}
	if err := json.Unmarshal(body, blocked); err != nil {
		return nil, fmt.Errorf("failed to decode block response: %w", err)
	}

	return blocked, nil
}
