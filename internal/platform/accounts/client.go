// Package accounts wraps the hosted authentication service's admin API.
// The storefront uses it to resolve buyers by email for order transfers and
// to delete accounts on request.
package accounts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrUserNotFound is returned when no account matches the lookup.
var ErrUserNotFound = errors.New("accounts: user not found")

const defaultTimeout = 15 * time.Second

// User is the slice of an account record the storefront cares about.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Client talks to the auth admin API with a service key.
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
}

// Option customises a Client.
type Option func(*Client)

// WithHTTPClient overrides the HTTP client used for admin calls.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// NewClient builds an admin accounts client rooted at baseURL.
func NewClient(baseURL, serviceKey string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, errors.New("accounts: base url is required")
	}
	if serviceKey == "" {
		return nil, errors.New("accounts: service key is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FindUserByEmail resolves an account by its email address. The admin API has
// no exact-match filter, so the page returned for the email query is scanned
// for a case-insensitive match.
func (c *Client) FindUserByEmail(ctx context.Context, email string) (User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return User{}, errors.New("accounts: email is required")
	}

	endpoint := fmt.Sprintf("%s/auth/v1/admin/users?filter=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return User{}, fmt.Errorf("accounts: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("accounts: list users: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("accounts: list users failed with status %d", resp.StatusCode)
	}

	var page struct {
		Users []User `json:"users"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return User{}, fmt.Errorf("accounts: decode users: %w", err)
	}
	for _, u := range page.Users {
		if strings.EqualFold(u.Email, email) {
			return u, nil
		}
	}
	return User{}, ErrUserNotFound
}

// DeleteUser removes an account by id.
func (c *Client) DeleteUser(ctx context.Context, userID string) error {
	if userID == "" {
		return errors.New("accounts: user id is required")
	}

	endpoint := fmt.Sprintf("%s/auth/v1/admin/users/%s", c.baseURL, url.PathEscape(userID))
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("accounts: build request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("accounts: delete user: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrUserNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("accounts: delete user failed with status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	req.Header.Set("apikey", c.serviceKey)
}
