package media

import (
	"context"
	"fmt"
	"strings"
	"time"

	"recibo/internal/event"
	"recibo/internal/logger"
	"recibo/pkg/errors"
	"recibo/pkg/metrics"
)

// Fetcher is the gateway-facing download capability. Both calls are
// authenticated (or not) per vendor; the resolver does not care.
type Fetcher interface {
	FetchByURL(ctx context.Context, url string) ([]byte, error)
	FetchByID(ctx context.Context, id string) ([]byte, error)
}

// strategy is one acquisition attempt. A failed attempt leaves no state
// behind.
type strategy struct {
	name    string
	applies func(ref event.MediaReference) bool
	fetch   func(ctx context.Context, ref event.MediaReference) ([]byte, error)
}

// Resolver turns a MediaReference into raw bytes by walking an ordered list
// of strategies and stopping at the first success. Every applicable strategy
// is tried even when an earlier one fails; only full exhaustion yields
// ErrMediaUnavailable. Strategies are not retried individually.
type Resolver struct {
	strategies []strategy
	logger     logger.Logger
}

func NewResolver(fetcher Fetcher, log logger.Logger) *Resolver {
	return &Resolver{
		logger: log,
		strategies: []strategy{
			{
				name:    "inline",
				applies: func(ref event.MediaReference) bool { return len(ref.InlineData) > 0 },
				fetch: func(_ context.Context, ref event.MediaReference) ([]byte, error) {
					return ref.InlineData, nil
				},
			},
			{
				name:    "url",
				applies: func(ref event.MediaReference) bool { return ref.RemoteURL != "" },
				fetch: func(ctx context.Context, ref event.MediaReference) ([]byte, error) {
					return fetcher.FetchByURL(ctx, ref.RemoteURL)
				},
			},
			{
				name:    "gateway_id",
				applies: func(ref event.MediaReference) bool { return ref.GatewayMediaID != "" },
				fetch: func(ctx context.Context, ref event.MediaReference) ([]byte, error) {
					return fetcher.FetchByID(ctx, ref.GatewayMediaID)
				},
			},
		},
	}
}

func (r *Resolver) Resolve(ctx context.Context, ref event.MediaReference) ([]byte, error) {
	var attemptErrs []string

	for _, s := range r.strategies {
		if !s.applies(ref) {
			continue
		}

		if err := ctx.Err(); err != nil {
			return nil, errors.Wrap(err, errors.ErrMediaUnavailable)
		}

		start := time.Now()
		data, err := s.fetch(ctx, ref)
		if err != nil {
			metrics.ObserveMediaResolveDuration(time.Since(start), s.name, "error")
			r.logger.WarnwCtx(ctx, "Media strategy failed", "strategy", s.name, "error", err)
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: %v", s.name, err))
			continue
		}
		if len(data) == 0 {
			metrics.ObserveMediaResolveDuration(time.Since(start), s.name, "empty")
			attemptErrs = append(attemptErrs, fmt.Sprintf("%s: empty body", s.name))
			continue
		}

		metrics.ObserveMediaResolveDuration(time.Since(start), s.name, "success")
		return data, nil
	}

	if len(attemptErrs) == 0 {
		return nil, errors.ErrMediaUnavailable.WithDetail("message", "reference carries no retrievable field")
	}
	return nil, errors.ErrMediaUnavailable.WithDetail("attempts", strings.Join(attemptErrs, "; "))
}
