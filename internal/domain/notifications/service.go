package notifications

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hrportal/internal/domain/users"
	"hrportal/internal/platform/email"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
)

// Pusher emits an event to every live connection of a user.
type Pusher interface {
	Emit(userID, event string, data any) bool
}

type Dispatcher interface {
	Enqueue(jobType string, run jobs.RunFunc) bool
}

type Recipients interface {
	Get(ctx context.Context, id string) (users.User, error)
}

type Service struct {
	store    StoreAPI
	pusher   Pusher
	mailer   email.Mailer
	users    Recipients
	dispatch Dispatcher
	metrics  *metrics.Collector
	now      func() time.Time
}

func New(store StoreAPI, pusher Pusher, mailer email.Mailer, recipients Recipients, dispatch Dispatcher, collector *metrics.Collector) *Service {
	return &Service{
		store:    store,
		pusher:   pusher,
		mailer:   mailer,
		users:    recipients,
		dispatch: dispatch,
		metrics:  collector,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Notify persists, pushes and emails a notification on the background worker.
// It returns immediately and never reports failures to the caller.
func (s *Service) Notify(ctx context.Context, userID, event, title, body string, payload any) {
	n := Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Event:     event,
		Title:     title,
		Body:      body,
		CreatedAt: s.now(),
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			slog.Warn("notification payload marshal failed", "event", event, "err", err)
		} else {
			n.Payload = raw
		}
	}

	run := func(ctx context.Context) (any, error) {
		s.deliver(ctx, n, payload)
		return nil, nil
	}
	if s.dispatch == nil {
		_, _ = run(context.WithoutCancel(ctx))
		return
	}
	if !s.dispatch.Enqueue(jobs.JobNotificationDelivery, run) {
		s.record(false)
	}
}

func (s *Service) deliver(ctx context.Context, n Notification, payload any) {
	delivered := true
	if err := s.store.Create(ctx, n); err != nil {
		delivered = false
		slog.Warn("notification persist failed", "userId", n.UserID, "event", n.Event, "err", err)
	}
	if s.pusher != nil {
		s.pusher.Emit(n.UserID, n.Event, payload)
	}
	s.record(delivered)

	if s.mailer == nil || s.users == nil {
		return
	}
	recipient, err := s.users.Get(ctx, n.UserID)
	if err != nil {
		slog.Warn("notification email lookup failed", "userId", n.UserID, "err", err)
		return
	}
	if recipient.Email == "" {
		return
	}
	if err := s.mailer.Send(ctx, recipient.Email, n.Title, n.Body); err != nil {
		slog.Warn("notification email send failed", "userId", n.UserID, "err", err)
	}
}

func (s *Service) record(delivered bool) {
	if s.metrics != nil {
		s.metrics.RecordNotification(delivered)
	}
}

func (s *Service) List(ctx context.Context, userID string, limit, offset int) (Page, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	items, err := s.store.List(ctx, userID, limit, offset)
	if err != nil {
		return Page{}, err
	}
	unread, err := s.store.CountUnread(ctx, userID)
	if err != nil {
		return Page{}, err
	}
	return Page{Items: items, Unread: unread, Limit: limit, Offset: offset}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.store.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	ok, err := s.store.MarkRead(ctx, userID, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.store.MarkAllRead(ctx, userID)
}
