package leave

import (
	"context"
	"slices"
	"sort"
	"sync"
	"time"
)

type memoryStore struct {
	mu        sync.Mutex
	leaves    map[string]Request
	overrides map[cacheKey]Override
	seq       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{leaves: map[string]Request{}, overrides: map[cacheKey]Override{}}
}

func cloneRequest(r Request) Request {
	r.StatusHistory = slices.Clone(r.StatusHistory)
	r.Attachments = slices.Clone(r.Attachments)
	return r
}

func (m *memoryStore) Create(_ context.Context, r Request) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seq++
	r.Version = 1
	r.CreatedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(m.seq) * time.Minute)
	r.UpdatedAt = r.CreatedAt
	m.leaves[r.ID] = cloneRequest(r)
	return cloneRequest(r), nil
}

func (m *memoryStore) Get(_ context.Context, id string) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.leaves[id]
	if !ok {
		return Request{}, ErrNotFound
	}
	return cloneRequest(r), nil
}

func (m *memoryStore) List(_ context.Context, f ListFilter) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Request{}
	for _, r := range m.leaves {
		if f.Status != "" && r.Status != f.Status {
			continue
		}
		if f.TeamLeadStatus != "" && r.TeamLead.Status != f.TeamLeadStatus {
			continue
		}
		if f.UserID != "" && r.UserID != f.UserID {
			continue
		}
		if f.TeamLeadAssignee != "" && !r.AssignedTo(f.TeamLeadAssignee) {
			continue
		}
		out = append(out, cloneRequest(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) ListInRange(_ context.Context, userID string, start, end time.Time) ([]Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []Request{}
	for _, r := range m.leaves {
		if r.UserID == userID && !r.FromDate.Before(start) && r.FromDate.Before(end) {
			out = append(out, cloneRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FromDate.Before(out[j].FromDate) })
	return out, nil
}

func (m *memoryStore) save(r Request, expectedVersion int) (Request, error) {
	current, ok := m.leaves[r.ID]
	if !ok {
		return Request{}, ErrNotFound
	}
	if current.Version != expectedVersion {
		return Request{}, ErrVersionConflict
	}
	r.Version = current.Version + 1
	m.leaves[r.ID] = cloneRequest(r)
	return cloneRequest(r), nil
}

func (m *memoryStore) Save(_ context.Context, r Request, expectedVersion int) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.save(r, expectedVersion)
}

func (m *memoryStore) SaveStatus(_ context.Context, r Request, expectedVersion int, w *OverrideWrite) (Request, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if current, ok := m.leaves[r.ID]; ok && current.Version != expectedVersion {
		return Request{}, ErrVersionConflict
	}
	if w != nil {
		if _, err := m.upsert(*w); err != nil {
			return Request{}, err
		}
	}
	return m.save(r, expectedVersion)
}

func (m *memoryStore) upsert(w OverrideWrite) (Override, error) {
	key := cacheKey{userID: w.UserID, year: w.Year}
	current, exists := m.overrides[key]
	if w.ExpectedVersion != nil && exists && current.Version != *w.ExpectedVersion {
		return Override{}, ErrVersionConflict
	}
	o := Override{
		UserID:    w.UserID,
		Year:      w.Year,
		Allowed:   ptr(w.Allowed),
		Used:      ptr(w.Used),
		Remaining: ptr(w.Remaining),
		UpdatedBy: ptr(w.UpdatedBy),
		UpdatedAt: time.Now().UTC(),
		Version:   current.Version + 1,
	}
	m.overrides[key] = o
	return o, nil
}

func (m *memoryStore) UpsertOverride(_ context.Context, w OverrideWrite) (Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.upsert(w)
}

func (m *memoryStore) AcceptedDays(_ context.Context, userID string, year int, excludeIDs ...string) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total float64
	for _, r := range m.leaves {
		if r.UserID != userID || r.Status != StatusAccepted || r.Year() != year || slices.Contains(excludeIDs, r.ID) {
			continue
		}
		total += r.Days()
	}
	return total, nil
}

func (m *memoryStore) GetOverride(_ context.Context, userID string, year int) (*Override, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.overrides[cacheKey{userID: userID, year: year}]
	if !ok {
		return nil, nil
	}
	return &o, nil
}
