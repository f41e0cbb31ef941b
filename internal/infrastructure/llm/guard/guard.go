package guard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"taskpilot/internal/application/port/output"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

var _ output.LLMPort = (*Guard)(nil)

// ErrCircuitOpen is returned while the planner backend is considered down.
var ErrCircuitOpen = errors.New("planner circuit open")

// Guard throttles planner calls and stops calling a failing backend for a
// while. It wraps any LLMPort.
type Guard struct {
	next    output.LLMPort
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	logger  output.LoggerPort
}

type Config struct {
	RequestsPerSecond float64
	Burst             int
	MaxFailures       uint32
	OpenTimeout       time.Duration
	Logger            output.LoggerPort
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 2,
		Burst:             1,
		MaxFailures:       3,
		OpenTimeout:       30 * time.Second,
	}
}

func New(next output.LLMPort, cfg Config) *Guard {
	g := &Guard{next: next, logger: cfg.Logger}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	g.limiter = rate.NewLimiter(limit, burst)

	maxFailures := cfg.MaxFailures
	if maxFailures == 0 {
		maxFailures = 3
	}
	g.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "planner",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= maxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if g.logger != nil {
				g.logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
			}
		},
	})
	return g
}

func (g *Guard) Chat(ctx context.Context, req output.ChatRequest) (*output.ChatResponse, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("planner rate limit: %w", err)
	}

	res, err := g.breaker.Execute(func() (interface{}, error) {
		return g.next.Chat(ctx, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return nil, fmt.Errorf("%w: %v", ErrCircuitOpen, err)
		}
		return nil, err
	}
	return res.(*output.ChatResponse), nil
}

// State reports the breaker state: closed, half-open or open.
func (g *Guard) State() string {
	return g.breaker.State().String()
}
