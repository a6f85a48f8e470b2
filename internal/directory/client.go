// Package directory предоставляет клиент для внешнего справочника объектов и клиентов.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// ErrNotFound возвращается, если справочник не знает запрошенный идентификатор.
var ErrNotFound = errors.New("directory entry not found")

// RateLimitError возвращается при ответе 429 и содержит рекомендуемую паузу.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("directory rate limited, retry after %s", e.RetryAfter)
}

// Client инкапсулирует HTTP-взаимодействие со справочником.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Property описывает объект недвижимости в справочнике.
type Property struct {
	ID      int64  `json:"id"`
	Address string `json:"address"`
}

// Customer описывает клиента в справочнике.
type Customer struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// NewClient создаёт HTTP-клиент для обращения к справочнику по указанному адресу.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
		},
	}
}

// GetProperty запрашивает объект недвижимости по идентификатору.
func (c *Client) GetProperty(ctx context.Context, id int64) (*Property, error) {
	var p Property
	if err := c.get(ctx, fmt.Sprintf("/api/properties/%d", id), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// GetCustomer запрашивает клиента по идентификатору.
func (c *Client) GetCustomer(ctx context.Context, id int64) (*Customer, error) {
	var cu Customer
	if err := c.get(ctx, fmt.Sprintf("/api/customers/%d", id), &cu); err != nil {
		return nil, err
	}
	return &cu, nil
}

func (c *Client) get(ctx context.Context, path string, dst any) error {
	if c == nil || c.baseURL == "" {
		return fmt.Errorf("directory client not configured")
	}

	base := c.baseURL
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+path, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return ErrNotFound
	case http.StatusTooManyRequests:
		retryAfter := time.Duration(0)
		if v := resp.Header.Get("Retry-After"); v != "" {
			if seconds, parseErr := strconv.Atoi(v); parseErr == nil {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{RetryAfter: retryAfter}
	default:
		return fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
