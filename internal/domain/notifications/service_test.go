package notifications

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hrportal/internal/domain/users"
	"hrportal/internal/platform/jobs"
	"hrportal/internal/platform/metrics"
)

type memoryStore struct {
	mu      sync.Mutex
	items   []Notification
	failErr error
}

func (m *memoryStore) Create(_ context.Context, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failErr != nil {
		return m.failErr
	}
	m.items = append(m.items, n)
	return nil
}

func (m *memoryStore) List(_ context.Context, userID string, limit, offset int) ([]Notification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Notification
	for _, n := range m.items {
		if n.UserID == userID {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Notification{}, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memoryStore) CountUnread(_ context.Context, userID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, n := range m.items {
		if n.UserID == userID && n.ReadAt == nil {
			total++
		}
	}
	return total, nil
}

func (m *memoryStore) MarkRead(_ context.Context, userID, id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.items {
		if m.items[i].ID == id && m.items[i].UserID == userID {
			now := time.Now()
			m.items[i].ReadAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) MarkAllRead(_ context.Context, userID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for i := range m.items {
		if m.items[i].UserID == userID && m.items[i].ReadAt == nil {
			now := time.Now()
			m.items[i].ReadAt = &now
			n++
		}
	}
	return n, nil
}

type pushed struct {
	userID string
	event  string
	data   any
}

type recordingPusher struct {
	mu     sync.Mutex
	frames []pushed
}

func (p *recordingPusher) Emit(userID, event string, data any) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.frames = append(p.frames, pushed{userID, event, data})
	return true
}

type mail struct{ to, subject string }

type recordingMailer struct {
	mu   sync.Mutex
	sent []mail
}

func (m *recordingMailer) Send(_ context.Context, to, subject, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, mail{to, subject})
	return nil
}

type directory map[string]users.User

func (d directory) Get(_ context.Context, id string) (users.User, error) {
	u, ok := d[id]
	if !ok {
		return users.User{}, users.ErrNotFound
	}
	return u, nil
}

// inlineDispatcher runs jobs synchronously so assertions see the result.
type inlineDispatcher struct{ reject bool }

func (d inlineDispatcher) Enqueue(_ string, run jobs.RunFunc) bool {
	if d.reject {
		return false
	}
	_, _ = run(context.Background())
	return true
}

func TestNotifyPersistsPushesAndEmails(t *testing.T) {
	store := &memoryStore{}
	pusher := &recordingPusher{}
	mailer := &recordingMailer{}
	collector := metrics.New()
	dir := directory{"lead": {ID: "lead", Email: "lead@example.com"}}
	svc := New(store, pusher, mailer, dir, inlineDispatcher{}, collector)

	payload := map[string]string{"leaveId": "L1"}
	svc.Notify(context.Background(), "lead", "leave:new", "New leave request", "Sara submitted a leave request.", payload)

	require.Len(t, store.items, 1)
	n := store.items[0]
	assert.Equal(t, "leave:new", n.Event)
	assert.JSONEq(t, `{"leaveId":"L1"}`, string(n.Payload))
	assert.NotEmpty(t, n.ID)

	require.Len(t, pusher.frames, 1)
	assert.Equal(t, "lead", pusher.frames[0].userID)
	assert.Equal(t, payload, pusher.frames[0].data)

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, mail{"lead@example.com", "New leave request"}, mailer.sent[0])
	assert.Equal(t, uint64(1), collector.Snapshot()["notificationsSentTotal"])
}

func TestNotifySwallowsFailures(t *testing.T) {
	store := &memoryStore{failErr: errors.New("db down")}
	pusher := &recordingPusher{}
	collector := metrics.New()
	svc := New(store, pusher, nil, nil, inlineDispatcher{}, collector)

	svc.Notify(context.Background(), "ghost", "leave:status", "t", "b", nil)
	assert.Len(t, pusher.frames, 1)
	assert.Equal(t, uint64(1), collector.Snapshot()["notificationsDroppedTotal"])

	svc = New(&memoryStore{}, pusher, nil, nil, inlineDispatcher{reject: true}, collector)
	svc.Notify(context.Background(), "ghost", "leave:status", "t", "b", nil)
	assert.Equal(t, uint64(2), collector.Snapshot()["notificationsDroppedTotal"])
}

func TestListAndMarkRead(t *testing.T) {
	store := &memoryStore{}
	svc := New(store, nil, nil, nil, nil, nil)
	base := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"n1", "n2", "n3"} {
		store.items = append(store.items, Notification{ID: id, UserID: "u1", Event: "leave:status", CreatedAt: base.Add(time.Duration(i) * time.Minute)})
	}
	store.items = append(store.items, Notification{ID: "x", UserID: "u2", CreatedAt: base})

	page, err := svc.List(context.Background(), "u1", 2, 0)
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "n3", page.Items[0].ID)
	assert.Equal(t, 3, page.Unread)

	require.NoError(t, svc.MarkRead(context.Background(), "u1", "n1"))
	require.ErrorIs(t, svc.MarkRead(context.Background(), "u1", "x"), ErrNotFound)

	count, err := svc.UnreadCount(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	cleared, err := svc.MarkAllRead(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), cleared)

	page, err = svc.List(context.Background(), "u1", 500, -3)
	require.NoError(t, err)
	assert.Equal(t, MaxLimit, page.Limit)
	assert.Equal(t, 0, page.Offset)
	assert.Equal(t, 0, page.Unread)
}
