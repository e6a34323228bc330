// Package scheduler runs the periodic ranking collection sweep.
package scheduler

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nplace/tracker/internal/tracker"
)

// Scheduler drives CollectAll on a cron schedule.
type Scheduler struct {
	cron *cron.Cron
	svc  *tracker.Service
}

// New creates a Scheduler. The spec uses the standard cron format and also
// accepts descriptors like "@hourly".
func New(svc *tracker.Service, spec string) (*Scheduler, error) {
	c := cron.New(cron.WithLogger(cronLogger{}))
	s := &Scheduler{cron: c, svc: svc}

	if _, err := c.AddFunc(spec, s.sweep); err != nil {
		return nil, eris.Wrapf(err, "scheduler: bad schedule %q", spec)
	}
	return s, nil
}

func (s *Scheduler) sweep() {
	collected, err := s.svc.CollectAll(context.Background())
	if err != nil {
		zap.L().Error("scheduled sweep failed", zap.Error(err))
		return
	}
	zap.L().Info("scheduled sweep done", zap.Int("collected", collected))
}

// Start begins firing the schedule in a background goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	zap.L().Info("scheduler started")
}

// Stop stops the schedule and waits for a running sweep to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	zap.L().Info("scheduler stopped")
}

// cronLogger adapts the cron library's logging to zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	zap.L().Debug("cron: "+msg, zap.Any("params", formatParams(keysAndValues)))
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	zap.L().Error("cron: "+msg, zap.Error(err), zap.Any("params", formatParams(keysAndValues)))
}

func formatParams(keysAndValues []any) []string {
	params := make([]string, 0, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		params = append(params, fmt.Sprintf("%v: %v", keysAndValues[i], keysAndValues[i+1]))
	}
	return params
}
