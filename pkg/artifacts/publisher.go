package artifacts

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/time/rate"
)

// Receipt lists the content addresses of a published run.
type Receipt struct {
	RunID    string `json:"run_id"`
	Report   string `json:"report"`
	Document string `json:"document"`
}

// Publisher uploads run outputs to a Store, throttling uploads so bulk
// publishing stays within backend request quotas.
type Publisher struct {
	store   Store
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewPublisher allows rps uploads per second with the given burst.
// A non-positive rps disables throttling.
func NewPublisher(store Store, rps float64, burst int, logger *slog.Logger) *Publisher {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{
		store:   store,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With("component", "publisher"),
	}
}

func (p *Publisher) put(ctx context.Context, data []byte) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("publish throttled: %w", err)
	}
	return p.store.Put(ctx, data)
}

// Publish stores the rendered report and the canonical metrics document.
func (p *Publisher) Publish(ctx context.Context, runID string, report, document []byte) (Receipt, error) {
	reportHash, err := p.put(ctx, report)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish report: %w", err)
	}
	docHash, err := p.put(ctx, document)
	if err != nil {
		return Receipt{}, fmt.Errorf("publish document: %w", err)
	}

	p.logger.InfoContext(ctx, "run published", "run_id", runID, "report", reportHash, "document", docHash)
	return Receipt{RunID: runID, Report: reportHash, Document: docHash}, nil
}
