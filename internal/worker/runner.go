package worker

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Schedule carries the cron expressions for each sweep.
type Schedule struct {
	ExpireSubscriptions string
	RenewSubscriptions  string
	OverdueReminders    string
	StalePayments       string
	MonthlyReport       string
}

// DefaultSchedule runs expiry and renewals hourly, reminders and stale
// payment cleanup daily, and the report on the first of each month.
func DefaultSchedule() Schedule {
	return Schedule{
		ExpireSubscriptions: "0 * * * *",
		RenewSubscriptions:  "30 * * * *",
		OverdueReminders:    "0 9 * * *",
		StalePayments:       "15 3 * * *",
		MonthlyReport:       "0 6 1 * *",
	}
}

// Runner drives the maintenance sweeps on a cron schedule.
type Runner struct {
	cron *cron.Cron
	log  *zap.Logger
}

// NewRunner registers every sweep against its schedule. The jobs share a
// background context; sweeps bound their own work internally.
func NewRunner(m *Maintenance, sched Schedule, log *zap.Logger) (*Runner, error) {
	c := cron.New()

	jobs := []struct {
		name string
		spec string
		run  func(context.Context) Summary
	}{
		{"expire_subscriptions", sched.ExpireSubscriptions, m.ExpireSubscriptions},
		{"renew_subscriptions", sched.RenewSubscriptions, m.RenewSubscriptions},
		{"send_overdue_reminders", sched.OverdueReminders, m.SendOverdueReminders},
		{"expire_stale_payments", sched.StalePayments, m.ExpireStalePayments},
		{"generate_monthly_report", sched.MonthlyReport, m.GenerateMonthlyReport},
	}

	for _, job := range jobs {
		job := job
		_, err := c.AddFunc(job.spec, func() {
			summary := job.run(context.Background())
			log.Info("maintenance sweep completed",
				zap.String("sweep", job.name),
				zap.Int("processed", summary.Processed),
				zap.Int("succeeded", summary.Succeeded),
				zap.Int("failed", summary.Failed))
		})
		if err != nil {
			return nil, err
		}
	}

	return &Runner{cron: c, log: log}, nil
}

// Start launches the scheduler loop in its own goroutine.
func (r *Runner) Start() {
	r.cron.Start()
	r.log.Info("maintenance scheduler started")
}

// Stop halts scheduling and waits for any running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.log.Info("maintenance scheduler stopped")
}
