package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"hrportal/internal/transport/http/api"
	"hrportal/internal/transport/http/shared"
)

// fixedWindow counts hits per key. A key's window opens on its first hit and
// its count restarts once the window has elapsed.
type fixedWindow struct {
	mu        sync.Mutex
	limit     int
	span      time.Duration
	now       func() time.Time
	hits      map[string]*windowHits
	nextSweep time.Time
}

type windowHits struct {
	n       int
	resetAt time.Time
}

func newFixedWindow(limit int, span time.Duration, now func() time.Time) *fixedWindow {
	return &fixedWindow{limit: limit, span: span, now: now, hits: map[string]*windowHits{}}
}

// take records a hit for key. It returns false once the key is over the
// limit, along with the hits left and the time until the window resets.
func (fw *fixedWindow) take(key string) (bool, int, time.Duration) {
	now := fw.now()
	fw.mu.Lock()
	defer fw.mu.Unlock()

	if now.After(fw.nextSweep) {
		for k, h := range fw.hits {
			if !now.Before(h.resetAt) {
				delete(fw.hits, k)
			}
		}
		fw.nextSweep = now.Add(fw.span)
	}
	h, ok := fw.hits[key]
	if !ok || !now.Before(h.resetAt) {
		h = &windowHits{resetAt: now.Add(fw.span)}
		fw.hits[key] = h
	}
	h.n++
	return h.n <= fw.limit, max(fw.limit-h.n, 0), h.resetAt.Sub(now)
}

type keyFunc func(r *http.Request) string

type limiter struct {
	name   string
	window *fixedWindow
	key    keyFunc
}

// admit writes the rate headers and, when the caller is over the limit, a
// 429 envelope. It reports whether the request may continue.
func (l limiter) admit(w http.ResponseWriter, r *http.Request) bool {
	if l.window.limit <= 0 {
		return true
	}
	key := l.key(r)
	ok, left, resetIn := l.window.take(key)
	reset := int(resetIn.Round(time.Second) / time.Second)

	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(l.window.limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(left))
	w.Header().Set("X-RateLimit-Reset", strconv.Itoa(reset))
	if ok {
		return true
	}
	w.Header().Set("Retry-After", strconv.Itoa(max(reset, 1)))
	slog.Warn("rate limit exceeded", "limiter", l.name, "key", key, "method", r.Method, "path", r.URL.Path)
	api.Fail(w, http.StatusTooManyRequests, "rate_limited", "too many requests", GetRequestID(r.Context()))
	return false
}

// RateLimit caps each caller at limit requests per span. Signed-in callers
// are counted per user, anonymous ones per client IP.
func RateLimit(limit int, span time.Duration) func(http.Handler) http.Handler {
	return rateLimit(limit, span, time.Now)
}

func rateLimit(limit int, span time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	general := limiter{name: "general", window: newFixedWindow(limit, span, now), key: callerKey}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if general.admit(w, r) {
				next.ServeHTTP(w, r)
			}
		})
	}
}

// routeClass groups portal routes that share a tighter cap.
type routeClass int

const (
	classOpen routeClass = iota
	// sign-in and registration, counted per IP and per submitted email
	classCredential
	// admin decisions over other users' records, counted per actor
	classReview
	// employee check in and out, counted per actor
	classClock
)

type routeRule struct {
	method  string
	pattern string
	class   routeClass
}

// portalRoutes lists the capped routes below /api/v1. A "*" segment matches
// any single path segment.
var portalRoutes = []routeRule{
	{http.MethodPost, "/auth/login", classCredential},
	{http.MethodPost, "/auth/register", classCredential},
	{http.MethodPost, "/auth/verify-otp", classCredential},
	{http.MethodPost, "/auth/resend-otp", classCredential},
	{http.MethodPut, "/leaves/allowance", classReview},
	{http.MethodPatch, "/leaves/*/status", classReview},
	{http.MethodPost, "/attendance/mark", classReview},
	{http.MethodPost, "/attendance/bulk", classReview},
	{http.MethodPatch, "/fuel-requisitions/*/items/*/verification", classReview},
	{http.MethodPost, "/attendance/self/mark", classClock},
}

func classify(r *http.Request) routeClass {
	path := strings.Trim(strings.TrimPrefix(r.URL.Path, "/api/v1"), "/")
	segments := strings.Split(path, "/")
	for _, rule := range portalRoutes {
		if rule.method == r.Method && matchSegments(strings.Split(strings.Trim(rule.pattern, "/"), "/"), segments) {
			return rule.class
		}
	}
	return classOpen
}

func matchSegments(pattern, segments []string) bool {
	if len(pattern) != len(segments) {
		return false
	}
	for i, p := range pattern {
		if p != "*" && p != segments[i] {
			return false
		}
	}
	return true
}

// RouteRateLimit applies the per-class caps of portalRoutes, derived from
// base: a quarter for credential routes, half for review routes and a
// twentieth for clocking in or out. Other routes pass through.
func RouteRateLimit(base int, span time.Duration) func(http.Handler) http.Handler {
	return routeRateLimit(base, span, time.Now)
}

func routeRateLimit(base int, span time.Duration, now func() time.Time) func(http.Handler) http.Handler {
	credential := max(base/4, 1)
	classes := map[routeClass][]limiter{
		classCredential: {
			{name: "credential-ip", window: newFixedWindow(credential, span, now), key: shared.ClientIP},
			{name: "credential-email", window: newFixedWindow(credential, span, now), key: submittedEmailKey},
		},
		classReview: {
			{name: "review", window: newFixedWindow(max(base/2, 1), span, now), key: callerKey},
		},
		classClock: {
			{name: "clock", window: newFixedWindow(max(base/20, 2), span, now), key: callerKey},
		},
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			for _, l := range classes[classify(r)] {
				if !l.admit(w, r) {
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func callerKey(r *http.Request) string {
	if user, ok := GetUser(r.Context()); ok && user.UserID != "" {
		return "user:" + user.UserID
	}
	return "ip:" + shared.ClientIP(r)
}

// submittedEmailKey keys on the JSON body's email, else the client IP. The
// body is restored for the handler.
func submittedEmailKey(r *http.Request) string {
	if r.Body == nil || !strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
		return "ip:" + shared.ClientIP(r)
	}
	rest := r.Body
	raw, err := io.ReadAll(io.LimitReader(rest, 64<<10))
	r.Body = struct {
		io.Reader
		io.Closer
	}{io.MultiReader(bytes.NewReader(raw), rest), rest}
	if err != nil {
		return "ip:" + shared.ClientIP(r)
	}
	var body struct {
		Email string `json:"email"`
	}
	if json.Unmarshal(raw, &body) != nil || strings.TrimSpace(body.Email) == "" {
		return "ip:" + shared.ClientIP(r)
	}
	return "email:" + strings.ToLower(strings.TrimSpace(body.Email))
}
