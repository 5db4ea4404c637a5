package tts

import (
	"net/http"
	"testing"
	"time"
)

func fixedProvider(at time.Time) *TokenProvider {
	p := NewTokenProvider()
	p.now = func() time.Time { return at }
	return p
}

func TestTokenKnownValue(t *testing.T) {
	p := fixedProvider(time.Unix(1700000000, 0))
	want := "42301B335578FEFDAE2637DED1ABD614505D432559EC08032B82048483726AFF"
	if got := p.Token(); got != want {
		t.Fatalf("Token() = %s, want %s", got, want)
	}
}

func TestTokenIdempotentWithinWindow(t *testing.T) {
	base := time.Unix(1700000000, 0)
	// 1700000000 floors to a bucket 200s earlier, so +99s stays inside it.
	if fixedProvider(base).Token() != fixedProvider(base.Add(99*time.Second)).Token() {
		t.Fatalf("tokens differ within one 5-minute bucket")
	}
	if fixedProvider(base).Token() == fixedProvider(base.Add(tokenWindow)).Token() {
		t.Fatalf("tokens identical across buckets")
	}
}

func TestTokenSkewAdjustment(t *testing.T) {
	p := fixedProvider(time.Unix(1700000000, 0))
	before := p.Token()
	p.AdjustClockSkew(2 * tokenWindow)
	if p.Token() == before {
		t.Fatalf("expected skew adjustment to move the token bucket")
	}
}

func TestHandleRestrictedResponse(t *testing.T) {
	serverTime := time.Unix(1700000000, 0).UTC()
	p := fixedProvider(serverTime.Add(20 * time.Minute)) // local clock runs fast

	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Date", serverTime.Format(http.TimeFormat))
	if err := p.HandleRestrictedResponse(resp); err != nil {
		t.Fatalf("HandleRestrictedResponse() error = %v", err)
	}

	if got, want := p.Token(), fixedProvider(serverTime).Token(); got != want {
		t.Fatalf("skew-corrected token = %s, want server-time token %s", got, want)
	}
}

func TestHandleRestrictedResponseMissingDate(t *testing.T) {
	p := NewTokenProvider()
	if err := p.HandleRestrictedResponse(&http.Response{Header: http.Header{}}); err == nil {
		t.Fatalf("expected error for missing Date header")
	}
	if err := p.HandleRestrictedResponse(nil); err == nil {
		t.Fatalf("expected error for nil response")
	}
}
