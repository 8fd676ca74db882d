package chrono

import (
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"lapelle-backend/lib/timezone"
)

// CronAPI is the interface that anything depending on things to happen on a
// cron job should use.
type CronAPI interface {
	Cron(spec string, callback func()) error
}

// StandardCron is the standard implementation of CronAPI using
// `github.com/robfig/cron/v3`. Schedules run in French local time, matching
// the portal's calendar.
type StandardCron struct {
	cron *cron.Cron
}

func NewStandardCron() StandardCron {
	cronner := cron.New(
		cron.WithLogger(cronLogger{}),
		cron.WithLocation(timezone.Location),
	)
	cronner.Start()

	return StandardCron{
		cron: cronner,
	}
}

func (s StandardCron) Cron(spec string, callback func()) error {
	_, err := s.cron.AddFunc(spec, callback)
	return err
}

// Stop halts the scheduler; running jobs finish on their own.
func (s StandardCron) Stop() {
	s.cron.Stop()
}

type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	slog.Info(fmt.Sprintf("cron: %s", msg), keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	args := append([]any{"err", err.Error()}, keysAndValues...)
	slog.Error(fmt.Sprintf("cron: %s", msg), args...)
}
