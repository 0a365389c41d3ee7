package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/1broseidon/hallmonitor/pkg/models"
)

// Trigger computes a job's next fire time given the last one. It is the
// abstraction underneath both of the scheduler's trigger kinds (interval,
// cron) so the reconciliation loop never branches on which kind a job has.
type Trigger interface {
	// Next returns the first fire time strictly after from.
	Next(from time.Time) time.Time
	// Kind and Spec round-trip through models.SchedulerJob's
	// TriggerKind/TriggerSpec fields for persistence.
	Kind() string
	Spec() string
}

// IntervalTrigger fires every Interval, starting one Interval after the
// reference time it is first asked about.
type IntervalTrigger struct {
	Interval time.Duration
}

func (t IntervalTrigger) Next(from time.Time) time.Time { return from.Add(t.Interval) }
func (t IntervalTrigger) Kind() string                  { return "interval" }
func (t IntervalTrigger) Spec() string                  { return fmt.Sprintf("%d", int(t.Interval.Seconds())) }

// CronTrigger fires according to a standard 5-field cron expression,
// evaluated in UTC per spec.md section 4.7.
type CronTrigger struct {
	schedule cron.Schedule
	spec     string
}

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NewCronTrigger parses expr as a standard 5-field cron expression.
func NewCronTrigger(expr string) (*CronTrigger, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return &CronTrigger{schedule: schedule, spec: expr}, nil
}

func (t *CronTrigger) Next(from time.Time) time.Time { return t.schedule.Next(from.UTC()) }
func (t *CronTrigger) Kind() string                  { return "cron" }
func (t *CronTrigger) Spec() string                  { return t.spec }

// BuildTrigger derives a monitor's trigger per spec.md section 4.7: a
// non-empty Schedule wins and becomes a cron trigger, otherwise Interval
// seconds drives an interval trigger.
func BuildTrigger(mon *models.Monitor) (Trigger, error) {
	if mon.UsesCron() {
		return NewCronTrigger(mon.Schedule)
	}
	interval := mon.Interval
	if interval <= 0 {
		interval = 30
	}
	return IntervalTrigger{Interval: time.Duration(interval) * time.Second}, nil
}

// RestoreTrigger rebuilds a Trigger from a persisted SchedulerJob record.
func RestoreTrigger(job *models.SchedulerJob) (Trigger, error) {
	switch job.TriggerKind {
	case "cron":
		return NewCronTrigger(job.TriggerSpec)
	case "interval":
		var secs int
		if _, err := fmt.Sscanf(job.TriggerSpec, "%d", &secs); err != nil {
			return nil, fmt.Errorf("invalid interval trigger spec %q: %w", job.TriggerSpec, err)
		}
		return IntervalTrigger{Interval: time.Duration(secs) * time.Second}, nil
	default:
		return nil, fmt.Errorf("unknown trigger kind %q", job.TriggerKind)
	}
}
