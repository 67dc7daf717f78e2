package workspace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// Session is a workspace-scoped token issued by the workspace services.
type Session struct {
	Access        string    `json:"access"`
	AccessExpiry  time.Time `json:"accessExpiry"`
	Refresh       string    `json:"refresh"`
	RefreshExpiry time.Time `json:"refreshExpiry"`
	Scope         []string  `json:"-"`
}

type sessionWire struct {
	Access        string `json:"access"`
	AccessExpiry  int64  `json:"accessExpiry"`
	Refresh       string `json:"refresh"`
	RefreshExpiry int64  `json:"refreshExpiry"`
	Scope         string `json:"scope"`
}

// Client exchanges caller bearers for workspace session tokens.
type Client struct {
	baseURL    string
	httpClient *http.Client
	cache      *TokenCache
	log        *logrus.Entry
	timeout    time.Duration
}

// NewClient builds a workspace-services client. cache may be nil.
func NewClient(baseURL string, httpClient *http.Client, cache *TokenCache, log *logrus.Entry) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		cache:      cache,
		log:        log,
		timeout:    30 * time.Second,
	}
}

// Token returns a workspace-scoped access token for the user, from
// cache when a fresh one is available.
func (c *Client) Token(ctx context.Context, workspace, userID, bearer string) (string, error) {
	if token, ok := c.cache.Get(ctx, workspace, userID); ok {
		return token, nil
	}

	session, err := c.CreateSession(ctx, workspace, userID, bearer)
	if err != nil {
		return "", err
	}
	c.cache.Put(ctx, workspace, userID, session)
	return session.Access, nil
}

// CreateSession performs the token exchange.
func (c *Client) CreateSession(ctx context.Context, workspace, userID, bearer string) (*Session, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := fmt.Sprintf("%s/%s/%s/sessions", c.baseURL, workspace, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("building session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("creating workspace session: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading session response: %w", err)
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("workspace session exchange failed: status %d", resp.StatusCode)
	}

	var wire sessionWire
	if err := json.Unmarshal(body, &wire); err != nil {
		return nil, fmt.Errorf("decoding session response: %w", err)
	}

	session := &Session{
		Access:        wire.Access,
		AccessExpiry:  time.Unix(wire.AccessExpiry, 0),
		Refresh:       wire.Refresh,
		RefreshExpiry: time.Unix(wire.RefreshExpiry, 0),
	}
	if wire.Scope != "" {
		session.Scope = strings.Fields(wire.Scope)
	}
	return session, nil
}
