// Package shopify talks to the Shopify Admin GraphQL API on behalf of a store.
package shopify

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

	"golang.org/x/time/rate"

	"github.com/500lbbicepcurl/Scalysis-public/internal/domain"
)

var (
	// ErrNoAccessToken is returned when a store has no offline token yet.
	ErrNoAccessToken = errors.New("shopify: store has no access token")

	// ErrUserErrors wraps mutation userErrors returned with HTTP 200.
	ErrUserErrors = errors.New("shopify: mutation rejected")
)

const tagsAddMutation = `mutation AddTagToOrder($id: ID!, $tags: [String!]!) {
  tagsAdd(id: $id, tags: $tags) {
    node {
      id
      ... on Order {
        tags
      }
    }
    userErrors {
      field
      message
    }
  }
}`

// Client implements domain.Flagger against the Admin GraphQL API.
// Calls are rate limited per store.
type Client struct {
	cfg        domain.ShopifyConfig
	httpClient *http.Client

	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewClient creates a client from configuration, filling in defaults.
func NewClient(cfg domain.ShopifyConfig) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = "2024-10"
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 2
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}

	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		limiters:   make(map[string]*rate.Limiter),
	}
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

// UserError is a field-level validation error from a mutation.
type UserError struct {
	Field   []string `json:"field"`
	Message string   `json:"message"`
}

type tagsAddResponse struct {
	Data struct {
		TagsAdd *struct {
			Node *struct {
				ID   string   `json:"id"`
				Tags []string `json:"tags"`
			} `json:"node"`
			UserErrors []UserError `json:"userErrors"`
		} `json:"tagsAdd"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// AddTags applies tags to the order identified by orderGID.
func (c *Client) AddTags(ctx context.Context, store *domain.Store, orderGID string, tags []string) error {
	if store == nil || store.AccessToken == "" {
		return ErrNoAccessToken
	}

	var resp tagsAddResponse
	err := c.do(ctx, store, graphQLRequest{
		Query: tagsAddMutation,
		Variables: map[string]any{
			"id":   orderGID,
			"tags": tags,
		},
	}, &resp)
	if err != nil {
		return err
	}

	if len(resp.Errors) > 0 {
		msgs := make([]string, len(resp.Errors))
		for i, e := range resp.Errors {
			msgs[i] = e.Message
		}
		return fmt.Errorf("shopify: graphql errors: %s", strings.Join(msgs, "; "))
	}
	if resp.Data.TagsAdd == nil {
		return fmt.Errorf("shopify: empty tagsAdd response for %s", orderGID)
	}
	if ue := resp.Data.TagsAdd.UserErrors; len(ue) > 0 {
		msgs := make([]string, len(ue))
		for i, e := range ue {
			msgs[i] = e.Message
		}
		return fmt.Errorf("%w: %s", ErrUserErrors, strings.Join(msgs, "; "))
	}
	return nil
}

func (c *Client) do(ctx context.Context, store *domain.Store, payload graphQLRequest, out any) error {
	if err := c.limiter(store.ID).Wait(ctx); err != nil {
		return fmt.Errorf("shopify: rate limit wait: %w", err)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("shopify: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(store.ID), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Shopify-Access-Token", store.AccessToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("shopify: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("shopify: read response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("shopify: %d %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("shopify: decode response: %w", err)
	}
	return nil
}

func (c *Client) endpoint(shop string) string {
	base := c.cfg.BaseURL
	if base == "" {
		base = "https://" + shop
	}
	return strings.TrimRight(base, "/") + "/admin/api/" + c.cfg.APIVersion + "/graphql.json"
}

func (c *Client) limiter(shop string) *rate.Limiter {
	c.mu.Lock()
	defer c.mu.Unlock()

	l, ok := c.limiters[shop]
	if !ok {
		l = rate.NewLimiter(rate.Limit(c.cfg.RequestsPerSecond), c.cfg.Burst)
		c.limiters[shop] = l
	}
	return l
}
