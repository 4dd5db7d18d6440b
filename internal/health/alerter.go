package health

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/outfieldhq/learning-engine/internal/resilience"
)

// Alerter pushes findings to a webhook. Delivery is best effort behind a
// circuit breaker, so a dead endpoint cannot stall a health pass.
type Alerter struct {
	webhookURL string
	client     *http.Client
	breaker    *resilience.CircuitBreaker
	logger     *zap.Logger
}

// NewAlerter creates an alerter for the given webhook URL. An empty URL
// disables delivery.
func NewAlerter(webhookURL string, logger *zap.Logger) *Alerter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Alerter{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
		breaker:    resilience.NewCircuitBreaker(resilience.DefaultCircuitBreakerConfig()),
		logger:     logger.With(zap.String("component", "health.alerter")),
	}
}

// Send delivers findings to the webhook one at a time. Returns the number
// successfully delivered.
func (a *Alerter) Send(ctx context.Context, findings []Finding) int {
	if a.webhookURL == "" || len(findings) == 0 {
		return 0
	}

	sent := 0
	for _, f := range findings {
		err := a.breaker.Execute(ctx, func(ctx context.Context) error {
			return a.post(ctx, f)
		})
		if err != nil {
			a.logger.Error("failed to deliver finding",
				zap.String("kind", string(f.Kind)),
				zap.String("tenant_id", f.TenantID),
				zap.Error(err),
			)
			continue
		}
		sent++
	}
	return sent
}

// post delivers a single finding to the webhook URL.
func (a *Alerter) post(ctx context.Context, f Finding) error {
	payload, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "health: marshal finding")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "health: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "health: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("health: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// LogFindings writes each finding to the structured log at a level
// matching its severity.
func LogFindings(logger *zap.Logger, findings []Finding) {
	for _, f := range findings {
		fields := []zap.Field{
			zap.String("kind", string(f.Kind)),
			zap.String("tenant_id", f.TenantID),
			zap.String("pattern_type", string(f.Type)),
		}
		if f.Severity == SeverityCritical {
			logger.Error(f.Message, fields...)
		} else {
			logger.Warn(f.Message, fields...)
		}
	}
}
