package tts

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Seconds between the Windows file time epoch (1601-01-01) and the Unix epoch.
const winEpochSeconds = 11_644_473_600

// tokenWindow is the bucket the service rounds token timestamps down to.
const tokenWindow = 300 * time.Second

// TokenProvider derives the rolling Sec-MS-GEC authorization value the
// service requires on every connection. The token is a function of wall
// clock time floored to a five minute bucket, so recomputing it within one
// bucket is idempotent. A clock skew correction can be folded in when the
// service rejects a handshake because the local clock is off.
type TokenProvider struct {
	mu   sync.Mutex
	skew time.Duration

	// now is the clock source, swappable in tests.
	now func() time.Time
}

func NewTokenProvider() *TokenProvider {
	return &TokenProvider{now: time.Now}
}

// Token computes the current Sec-MS-GEC value: the skew-corrected time as a
// Windows file time tick count (100ns units since 1601-01-01) floored to the
// nearest five minute boundary, concatenated with the shared secret, hashed
// with SHA-256 and rendered as uppercase hex.
func (p *TokenProvider) Token() string {
	p.mu.Lock()
	skew := p.skew
	now := p.now()
	p.mu.Unlock()

	sec := now.Add(skew).Unix() + winEpochSeconds
	sec -= sec % int64(tokenWindow/time.Second)
	ticks := sec * 10_000_000 // seconds to 100ns intervals

	sum := sha256.Sum256([]byte(strconv.FormatInt(ticks, 10) + TrustedClientToken))
	return strings.ToUpper(hex.EncodeToString(sum[:]))
}

// Refresh recomputes the token from the current wall clock. It exists for
// symmetry with the retry flow; the windowing makes it a plain Token call.
func (p *TokenProvider) Refresh() string {
	return p.Token()
}

// AdjustClockSkew shifts the provider's notion of current time by delta.
func (p *TokenProvider) AdjustClockSkew(delta time.Duration) {
	p.mu.Lock()
	p.skew += delta
	p.mu.Unlock()
}

// HandleRestrictedResponse corrects the clock skew from the Date header of a
// rejected handshake response, so the next Token call lands in the bucket
// the server is using.
func (p *TokenProvider) HandleRestrictedResponse(resp *http.Response) error {
	if resp == nil {
		return fmt.Errorf("no server response to adjust clock skew from")
	}
	date := resp.Header.Get("Date")
	if date == "" {
		return fmt.Errorf("no server date in response headers")
	}
	serverTime, err := http.ParseTime(date)
	if err != nil {
		return fmt.Errorf("parse server date %q: %w", date, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	client := p.now().Add(p.skew)
	p.skew += serverTime.Sub(client)
	return nil
}
