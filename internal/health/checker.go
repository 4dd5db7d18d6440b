package health

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Checker runs periodic health scans in the background.
type Checker struct {
	scanner  *Scanner
	alerter  *Alerter
	interval time.Duration
	logger   *zap.Logger
}

// NewChecker creates a background health checker.
func NewChecker(scanner *Scanner, alerter *Alerter, interval time.Duration, logger *zap.Logger) *Checker {
	if interval <= 0 {
		interval = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Checker{
		scanner:  scanner,
		alerter:  alerter,
		interval: interval,
		logger:   logger.With(zap.String("component", "health.checker")),
	}
}

// Run starts the periodic scan loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	c.logger.Info("starting health checker", zap.Duration("interval", c.interval))

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("health checker stopped")
			return
		case <-ticker.C:
			c.check(ctx)
		}
	}
}

// CheckNow runs one scan and delivers alerts for whatever it finds. It
// returns the finding and delivery counts so callers can report them.
func (c *Checker) CheckNow(ctx context.Context) (findings, delivered int, err error) {
	fs, err := c.scanner.Scan(ctx)
	if err != nil {
		return 0, 0, err
	}
	if len(fs) == 0 {
		c.logger.Debug("no findings")
		return 0, 0, nil
	}

	LogFindings(c.logger, fs)
	sent := c.alerter.Send(ctx, fs)
	return len(fs), sent, nil
}

// check runs one scan. Errors are logged and swallowed; health never takes
// down the process it watches.
func (c *Checker) check(ctx context.Context) {
	findings, delivered, err := c.CheckNow(ctx)
	if err != nil {
		c.logger.Error("health scan failed", zap.Error(err))
		return
	}
	if findings == 0 {
		return
	}
	c.logger.Info("health check complete",
		zap.Int("findings", findings),
		zap.Int("delivered", delivered),
	)
}
