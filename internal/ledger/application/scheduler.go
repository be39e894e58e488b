package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Scheduler runs the consistency sweep on a cron schedule.
type Scheduler struct {
	cron    *cron.Cron
	sweep   *ConsistencySweep
	logger  logrus.FieldLogger
	timeout time.Duration
}

// NewScheduler registers sweep under spec (standard five-field cron syntax,
// evaluated in loc). Each run is bounded by timeout when it is positive.
func NewScheduler(spec string, sweep *ConsistencySweep, logger logrus.FieldLogger, loc *time.Location, timeout time.Duration) (*Scheduler, error) {
	if sweep == nil {
		return nil, errors.New("sweep scheduler: nil sweep")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if loc == nil {
		loc = time.UTC
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithLocation(loc)),
		sweep:   sweep,
		logger:  logger,
		timeout: timeout,
	}
	if _, err := s.cron.AddFunc(spec, s.runOnce); err != nil {
		return nil, fmt.Errorf("sweep scheduler: schedule %q: %w", spec, err)
	}
	return s, nil
}

// Start begins running scheduled sweeps in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule and returns a context that is done when any running
// sweep has finished.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runOnce() {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	report, err := s.sweep.Run(ctx)
	if err != nil {
		s.logger.WithError(err).WithField("period", report.Period.Token()).Error("consistency sweep failed")
		return
	}
	for _, accountID := range report.Inconsistent {
		s.logger.WithFields(logrus.Fields{
			"account": accountID,
			"period":  report.Period.Token(),
		}).Error("inconsistent ledger")
	}
}
