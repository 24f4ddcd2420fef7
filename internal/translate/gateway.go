package translate

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/livecap/livecap/internal/observability"
	"github.com/livecap/livecap/internal/resilience"
)

// fallbackPrefix marks captions whose translation failed; the original text
// is passed through so the pipeline never stalls on a translation outage.
const fallbackPrefix = "[Translation Error] "

// Gateway wraps a Client with retry and circuit breaking. Translate never
// returns an error: exhausted failures degrade to a marked passthrough of
// the original text.
type Gateway struct {
	client  Client
	retry   *resilience.RetryConfig
	breaker *resilience.CircuitBreaker
	logger  zerolog.Logger
}

// GatewayConfig holds the resilience knobs for the gateway.
type GatewayConfig struct {
	RetryAttempts       int
	RetryInitialBackoff time.Duration
	BreakerMaxFailures  int
	BreakerResetTimeout time.Duration
}

// NewGateway creates a gateway around client.
func NewGateway(client Client, cfg GatewayConfig, logger zerolog.Logger) *Gateway {
	attempts := cfg.RetryAttempts
	if attempts < 1 {
		attempts = 1
	}
	backoff := cfg.RetryInitialBackoff
	if backoff <= 0 {
		backoff = 200 * time.Millisecond
	}

	return &Gateway{
		client: client,
		retry: &resilience.RetryConfig{
			MaxAttempts:       attempts,
			InitialBackoff:    backoff,
			MaxBackoff:        5 * time.Second,
			BackoffMultiplier: 2.0,
			Jitter:            true,
		},
		breaker: resilience.NewCircuitBreaker("translation", cfg.BreakerMaxFailures, cfg.BreakerResetTimeout),
		logger:  logger,
	}
}

// Translate converts text to the target language, or returns the marked
// fallback when the upstream call cannot be completed. Empty input yields
// empty output without a call.
func (g *Gateway) Translate(ctx context.Context, text, sourceLang, targetLang string) string {
	if text == "" {
		return ""
	}

	start := time.Now()
	var translated string
	err := resilience.Retry(ctx, func() error {
		return g.breaker.Call(func() error {
			var callErr error
			translated, callErr = g.client.Translate(ctx, text, sourceLang, targetLang)
			return callErr
		})
	}, g.retry)

	observability.UpdateCircuitBreakerState("translation", int(g.breaker.GetState()))
	observability.RecordTranslation(err == nil, time.Since(start).Seconds())

	if err != nil {
		g.logger.Warn().
			Err(err).
			Str("source_lang", sourceLang).
			Str("target_lang", targetLang).
			Msg("Translation failed, passing original through")
		return fallbackPrefix + text
	}
	return translated
}

// Fallback reports whether s is a degraded passthrough produced by the
// gateway.
func Fallback(s string) bool {
	return strings.HasPrefix(s, fallbackPrefix)
}
