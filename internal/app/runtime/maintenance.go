package runtime

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/R3E-Network/storefront/internal/middleware"
	"github.com/R3E-Network/storefront/pkg/logger"
)

// limiterSweepInterval is how often idle login throttles are dropped.
const limiterSweepInterval = 10 * time.Minute

// maintenance runs periodic housekeeping jobs on a cron schedule.
type maintenance struct {
	cron *cron.Cron
	log  *logger.Logger
	jobs []maintenanceJob
}

type maintenanceJob struct {
	name string
	spec string
	run  func()
}

func newMaintenance(log *logger.Logger) *maintenance {
	cl := cronLogger{log: log}
	return &maintenance{
		cron: cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		log:  log,
	}
}

// every schedules fn at a fixed interval. Jobs must be added before Start.
func (m *maintenance) every(name string, interval time.Duration, fn func()) {
	m.jobs = append(m.jobs, maintenanceJob{name: name, spec: "@every " + interval.String(), run: fn})
}

func (m *maintenance) Name() string { return "maintenance" }

func (m *maintenance) Start(context.Context) error {
	for _, job := range m.jobs {
		job := job
		if _, err := m.cron.AddFunc(job.spec, func() {
			started := time.Now()
			job.run()
			m.log.WithFields(map[string]interface{}{
				"job":         job.name,
				"duration_ms": time.Since(started).Milliseconds(),
			}).Debug("maintenance job finished")
		}); err != nil {
			return fmt.Errorf("schedule %s: %w", job.name, err)
		}
	}
	m.cron.Start()
	return nil
}

// Stop waits for running jobs or ctx, whichever comes first.
func (m *maintenance) Stop(ctx context.Context) error {
	done := m.cron.Stop()
	select {
	case <-done.Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func sweepLimiter(limiter *middleware.RateLimiter, maxIdle time.Duration) func() {
	return func() { limiter.Cleanup(maxIdle) }
}

// cronLogger adapts the logger to cron's logging interface.
type cronLogger struct {
	log *logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).Debug("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithFields(pairs(keysAndValues)).WithError(err).Error("cron: " + msg)
}

func pairs(kv []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return fields
}
