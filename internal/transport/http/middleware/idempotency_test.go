package middleware

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"hrportal/internal/domain/auth"
)

type memoryKeys struct {
	mu    sync.Mutex
	items map[string]struct {
		hash string
		resp StoredResponse
	}
}

func newMemoryKeys() *memoryKeys {
	return &memoryKeys{items: map[string]struct {
		hash string
		resp StoredResponse
	}{}}
}

func (m *memoryKeys) Check(_ context.Context, userID, endpoint, key, hash string) (*StoredResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	item, ok := m.items[userID+endpoint+key]
	if !ok {
		return nil, nil
	}
	if item.hash != hash {
		return nil, ErrIdempotencyConflict
	}
	resp := item.resp
	return &resp, nil
}

func (m *memoryKeys) Save(_ context.Context, userID, endpoint, key, hash string, resp StoredResponse) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[userID+endpoint+key] = struct {
		hash string
		resp StoredResponse
	}{hash, resp}
	return nil
}

func TestIdempotentReplaysFirstResponse(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryKeys())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"success":true,"data":{"id":"L1"}}`))
	}))

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves", bytes.NewBufferString(body))
		req.Header.Set(IdempotencyHeader, "k1")
		req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u1", RoleName: auth.RoleEmployee}))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		return rec
	}

	first := send(`{"leaveType":"full"}`)
	second := send(`{"leaveType":"full"}`)
	if calls != 1 {
		t.Fatalf("handler ran %d times", calls)
	}
	if second.Code != http.StatusCreated || second.Body.String() != `{"success":true,"data":{"id":"L1"}}` {
		t.Fatalf("unexpected replay %d %s", second.Code, second.Body.String())
	}
	if first.Header().Get("Idempotent-Replayed") != "" || second.Header().Get("Idempotent-Replayed") != "true" {
		t.Fatal("replay header mismatch")
	}

	conflict := send(`{"leaveType":"half"}`)
	if conflict.Code != http.StatusConflict {
		t.Fatalf("expected 409 for reused key, got %d", conflict.Code)
	}
}

func TestIdempotentPassesThroughWithoutKey(t *testing.T) {
	calls := 0
	handler := Idempotent(newMemoryKeys())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
	}))
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/leaves", bytes.NewBufferString(`{}`))
		req = req.WithContext(WithUser(req.Context(), auth.UserContext{UserID: "u1"}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected both requests to run, got %d", calls)
	}
}
