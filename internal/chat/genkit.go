package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"golang.org/x/time/rate"
)

// DefaultGenerateTimeout bounds a single completion call.
const DefaultGenerateTimeout = 60 * time.Second

// GenkitCompleter adapts Genkit generation to the Completer interface.
type GenkitCompleter struct {
	g         *genkit.Genkit
	modelName string
	limiter   *rate.Limiter
	timeout   time.Duration
}

// CompleterOption configures a GenkitCompleter.
type CompleterOption func(*GenkitCompleter)

// WithRateLimiter applies proactive rate limiting before each call.
func WithRateLimiter(l *rate.Limiter) CompleterOption {
	return func(c *GenkitCompleter) { c.limiter = l }
}

// WithGenerateTimeout bounds each completion call.
func WithGenerateTimeout(d time.Duration) CompleterOption {
	return func(c *GenkitCompleter) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewGenkitCompleter creates a completer backed by the given Genkit
// instance and provider-qualified model name.
func NewGenkitCompleter(g *genkit.Genkit, modelName string, opts ...CompleterOption) (*GenkitCompleter, error) {
	if g == nil {
		return nil, fmt.Errorf("genkit instance is required")
	}
	if modelName == "" {
		return nil, fmt.Errorf("model name is required")
	}

	c := &GenkitCompleter{
		g:         g,
		modelName: modelName,
		timeout:   DefaultGenerateTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Complete runs a single completion request. No retries: the caller owns
// failure semantics for a turn.
func (c *GenkitCompleter) Complete(ctx context.Context, system string, msgs []*ai.Message) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("rate limit wait: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := genkit.Generate(ctx, c.g,
		ai.WithModelName(c.modelName),
		ai.WithSystem(system),
		ai.WithMessages(msgs...),
	)
	if err != nil {
		return "", fmt.Errorf("generating completion: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", errors.New("model returned an empty response")
	}
	return text, nil
}
