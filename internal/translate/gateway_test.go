package translate

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

// scriptedClient fails a fixed number of times before succeeding.
type scriptedClient struct {
	failures int
	calls    int
	result   string
}

func (c *scriptedClient) Translate(ctx context.Context, text, sourceLang, targetLang string) (string, error) {
	c.calls++
	if c.calls <= c.failures {
		return "", errors.New("upstream unavailable")
	}
	return c.result, nil
}

func fastGatewayConfig() GatewayConfig {
	return GatewayConfig{
		RetryAttempts:       2,
		RetryInitialBackoff: time.Millisecond,
		BreakerMaxFailures:  5,
		BreakerResetTimeout: time.Second,
	}
}

func TestGateway_Success(t *testing.T) {
	client := &scriptedClient{result: "Hello"}
	gw := NewGateway(client, fastGatewayConfig(), zerolog.Nop())

	got := gw.Translate(context.Background(), "안녕하세요", "ko", "en")
	if got != "Hello" {
		t.Errorf("Translate() = %q, want %q", got, "Hello")
	}
	if Fallback(got) {
		t.Error("Successful translation must not be marked as fallback")
	}
}

func TestGateway_RetriesThenSucceeds(t *testing.T) {
	client := &scriptedClient{failures: 1, result: "Hello"}
	gw := NewGateway(client, fastGatewayConfig(), zerolog.Nop())

	got := gw.Translate(context.Background(), "안녕하세요", "ko", "en")
	if got != "Hello" {
		t.Errorf("Translate() = %q, want %q after retry", got, "Hello")
	}
	if client.calls != 2 {
		t.Errorf("Expected 2 calls, got %d", client.calls)
	}
}

func TestGateway_DegradesToMarkedPassthrough(t *testing.T) {
	client := &scriptedClient{failures: 100}
	gw := NewGateway(client, fastGatewayConfig(), zerolog.Nop())

	got := gw.Translate(context.Background(), "안녕하세요", "ko", "en")
	if !Fallback(got) {
		t.Fatalf("Expected fallback marker, got %q", got)
	}
	if !strings.Contains(got, "안녕하세요") {
		t.Errorf("Fallback must contain the original text, got %q", got)
	}
}

func TestGateway_EmptyInput(t *testing.T) {
	client := &scriptedClient{result: "should not be called"}
	gw := NewGateway(client, fastGatewayConfig(), zerolog.Nop())

	if got := gw.Translate(context.Background(), "", "ko", "en"); got != "" {
		t.Errorf("Expected empty output for empty input, got %q", got)
	}
	if client.calls != 0 {
		t.Errorf("Empty input must not reach the client, got %d calls", client.calls)
	}
}

func TestGateway_OpenBreakerStillDegrades(t *testing.T) {
	cfg := fastGatewayConfig()
	cfg.BreakerMaxFailures = 1
	cfg.BreakerResetTimeout = time.Hour
	client := &scriptedClient{failures: 100}
	gw := NewGateway(client, cfg, zerolog.Nop())

	// First call trips the breaker
	gw.Translate(context.Background(), "one", "ko", "en")
	callsAfterTrip := client.calls

	// Subsequent calls are rejected by the breaker but still degrade cleanly
	got := gw.Translate(context.Background(), "two", "ko", "en")
	if !Fallback(got) || !strings.Contains(got, "two") {
		t.Errorf("Expected fallback wrapping original, got %q", got)
	}
	if client.calls != callsAfterTrip {
		t.Errorf("Open breaker should not reach the client, calls went %d -> %d", callsAfterTrip, client.calls)
	}
}
