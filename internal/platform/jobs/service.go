package jobs

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"hrportal/internal/platform/metrics"
	"hrportal/internal/platform/querier"
)

const (
	JobNotificationDelivery = "notification_delivery"
	JobOTPCleanup           = "otp_cleanup"
)

type RunFunc func(context.Context) (any, error)

type job struct {
	Type  string
	Run   RunFunc
	Track bool
}

type schedule struct {
	jobType  string
	interval time.Duration
	run      RunFunc
}

// Service runs queued work on a single background worker and fires
// scheduled jobs on tickers. Scheduled runs are recorded in job_runs.
type Service struct {
	DB        querier.Querier
	Metrics   *metrics.Collector
	queue     chan job
	schedules []schedule
}

func New(db querier.Querier, collector *metrics.Collector, queueSize int) *Service {
	if queueSize <= 0 {
		queueSize = 128
	}
	return &Service{
		DB:      db,
		Metrics: collector,
		queue:   make(chan job, queueSize),
	}
}

// Every registers a periodic job. It must be called before Start.
func (s *Service) Every(jobType string, interval time.Duration, run RunFunc) {
	if interval <= 0 {
		return
	}
	s.schedules = append(s.schedules, schedule{jobType: jobType, interval: interval, run: run})
}

func (s *Service) Start(ctx context.Context) {
	go s.worker(ctx)
	for _, sc := range s.schedules {
		go s.tick(ctx, sc)
	}
}

// Enqueue hands run to the worker without blocking. A full queue drops the
// job and reports false.
func (s *Service) Enqueue(jobType string, run RunFunc) bool {
	select {
	case s.queue <- job{Type: jobType, Run: run}:
		return true
	default:
		slog.Warn("job queue full", "jobType", jobType)
		return false
	}
}

func (s *Service) RunNow(ctx context.Context, jobType string, run RunFunc) (any, error) {
	return s.runJob(ctx, job{Type: jobType, Run: run, Track: true})
}

func (s *Service) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-s.queue:
			if _, err := s.runJob(ctx, j); err != nil {
				slog.Warn("job run failed", "jobType", j.Type, "err", err)
			}
		}
	}
}

func (s *Service) tick(ctx context.Context, sc schedule) {
	ticker := time.NewTicker(sc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			select {
			case s.queue <- job{Type: sc.jobType, Run: sc.run, Track: true}:
			default:
				slog.Warn("job queue full", "jobType", sc.jobType)
			}
		}
	}
}

func (s *Service) runJob(ctx context.Context, j job) (details any, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("job panicked", "jobType", j.Type, "panic", r)
			details, err = nil, errPanic
		}
		if err != nil && s.Metrics != nil {
			s.Metrics.RecordJobFailure()
		}
	}()

	runID := ""
	if j.Track && s.DB != nil {
		if scanErr := s.DB.QueryRow(ctx, `
    INSERT INTO job_runs (job_type, status)
    VALUES ($1,$2)
    RETURNING id
  `, j.Type, "running").Scan(&runID); scanErr != nil {
			slog.Warn("job run insert failed", "jobType", j.Type, "err", scanErr)
		}
	}

	details, err = j.Run(ctx)
	if runID == "" {
		return details, err
	}

	status := "completed"
	if err != nil {
		status = "failed"
	}
	detailsJSON, marshalErr := json.Marshal(details)
	if marshalErr != nil {
		slog.Warn("job details marshal failed", "err", marshalErr)
		detailsJSON = []byte("{}")
	}
	if _, updErr := s.DB.Exec(ctx, `
    UPDATE job_runs
    SET status = $1, details_json = $2, completed_at = now()
    WHERE id = $3
  `, status, detailsJSON, runID); updErr != nil {
		slog.Warn("job run update failed", "err", updErr)
	}
	return details, err
}
