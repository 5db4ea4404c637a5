// Package voices fetches and filters the catalog of voices the service
// offers. The catalog lives behind a plain HTTPS GET guarded by the same
// rolling token as the synthesis WebSocket.
package voices

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/edgewire/readaloud/internal/logging"
	"github.com/edgewire/readaloud/internal/tts"
)

// Voice is one catalog entry as the service reports it. Language is derived
// locally from the locale prefix; the service does not send it.
type Voice struct {
	Name           string   `json:"Name"`
	ShortName      string   `json:"ShortName"`
	Gender         string   `json:"Gender"`
	Locale         string   `json:"Locale"`
	SuggestedCodec string   `json:"SuggestedCodec"`
	FriendlyName   string   `json:"FriendlyName"`
	Status         string   `json:"Status"`
	VoiceTag       VoiceTag `json:"VoiceTag"`
	Language       string   `json:"-"`
}

type VoiceTag struct {
	ContentCategories  []string `json:"ContentCategories"`
	VoicePersonalities []string `json:"VoicePersonalities"`
}

// Client fetches the voice catalog.
type Client struct {
	endpoint string
	http     *http.Client
	drm      *tts.TokenProvider
}

// Option adjusts a Client.
type Option func(*Client)

// WithEndpoint points the client at a different catalog URL, mainly for
// tests.
func WithEndpoint(endpoint string) Option {
	return func(c *Client) { c.endpoint = endpoint }
}

// WithProxy routes catalog requests through the given HTTP proxy.
func WithProxy(proxy string) Option {
	return func(c *Client) {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			logging.Warnf("ignoring invalid proxy %q: %v", proxy, err)
			return
		}
		c.http.Transport = &http.Transport{Proxy: http.ProxyURL(proxyURL)}
	}
}

// WithTokenProvider shares a token source (and its clock-skew state) with a
// synthesis session.
func WithTokenProvider(p *tts.TokenProvider) Option {
	return func(c *Client) { c.drm = p }
}

func NewClient(opts ...Option) *Client {
	c := &Client{
		endpoint: tts.DefaultVoiceListURL,
		http:     &http.Client{Timeout: 10 * time.Second},
		drm:      tts.NewTokenProvider(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// List downloads the full voice catalog. An HTTP 403 means the rolling token
// was rejected; like the synthesis handshake, the clock skew is corrected
// from the response and the request retried once.
func (c *Client) List(ctx context.Context) ([]Voice, error) {
	voices, retry, err := c.fetch(ctx)
	if retry {
		logging.Debugf("voice catalog request rejected with 403, refreshing token and retrying once")
		c.drm.Refresh()
		voices, _, err = c.fetch(ctx)
	}
	if err != nil {
		return nil, err
	}
	for i := range voices {
		voices[i].Language, _, _ = strings.Cut(voices[i].Locale, "-")
	}
	return voices, nil
}

func (c *Client) fetch(ctx context.Context) (voices []Voice, retryable bool, err error) {
	sep := "?"
	if strings.Contains(c.endpoint, "?") {
		sep = "&"
	}
	reqURL := c.endpoint + sep +
		"Sec-MS-GEC=" + c.drm.Token() +
		"&Sec-MS-GEC-Version=" + tts.SecMSGECVersion

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, false, err
	}
	for k, v := range tts.VoiceListHeaders {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("voice catalog request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusForbidden {
		if skewErr := c.drm.HandleRestrictedResponse(resp); skewErr != nil {
			logging.Debugf("clock skew adjustment skipped: %v", skewErr)
		}
		return nil, true, fmt.Errorf("voice catalog request: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("voice catalog request: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("voice catalog response: %w", err)
	}
	if err := json.Unmarshal(body, &voices); err != nil {
		return nil, false, fmt.Errorf("voice catalog response: %w", err)
	}
	return voices, false, nil
}

// Filter selects voices by attribute. Zero-value fields match everything.
type Filter struct {
	Gender   string
	Locale   string
	Language string
}

// Manager holds a fetched catalog and answers attribute queries against it.
type Manager struct {
	voices []Voice
}

// NewManager wraps an already fetched catalog.
func NewManager(voices []Voice) *Manager {
	return &Manager{voices: voices}
}

// LoadManager fetches the catalog and wraps it.
func LoadManager(ctx context.Context, opts ...Option) (*Manager, error) {
	voices, err := NewClient(opts...).List(ctx)
	if err != nil {
		return nil, err
	}
	return NewManager(voices), nil
}

// Voices returns the full catalog.
func (m *Manager) Voices() []Voice {
	return m.voices
}

// Find returns the voices matching every non-empty filter field.
func (m *Manager) Find(f Filter) []Voice {
	var out []Voice
	for _, v := range m.voices {
		if f.Gender != "" && v.Gender != f.Gender {
			continue
		}
		if f.Locale != "" && v.Locale != f.Locale {
			continue
		}
		if f.Language != "" && v.Language != f.Language {
			continue
		}
		out = append(out, v)
	}
	return out
}
