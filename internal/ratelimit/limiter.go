package ratelimit

import (
	"sync"
	"time"
)

// Category is an action class with its own window and limit.
type Category string

const (
	CategoryMessage     Category = "message"
	CategoryCrisisAlert Category = "crisis_alert"
	CategoryRoomOp      Category = "room_op"
)

// Limit is the window configuration for one category.
type Limit struct {
	Max    int
	Window time.Duration
}

// Decision is the outcome of CheckAndConsume. RetryAfter is zero when the
// action was allowed.
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration
}

type window struct {
	count int
	start time.Time
}

// Limiter tracks fixed windows per (identity, category). An identity's
// first action in a category opens a window; the window resets once its
// duration elapses.
type Limiter struct {
	mu      sync.Mutex
	limits  map[Category]Limit
	windows map[string]map[Category]*window

	now func() time.Time
}

func New(limits map[Category]Limit) *Limiter {
	return &Limiter{
		limits:  limits,
		windows: make(map[string]map[Category]*window),
		now:     time.Now,
	}
}

// CheckAndConsume consumes one slot for identity in the category, or
// denies with the time remaining until the window resets. Categories with
// no configured limit are always allowed.
func (l *Limiter) CheckAndConsume(identity string, category Category) Decision {
	limit, ok := l.limits[category]
	if !ok || limit.Max <= 0 {
		return Decision{Allowed: true}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	byCategory, ok := l.windows[identity]
	if !ok {
		byCategory = make(map[Category]*window)
		l.windows[identity] = byCategory
	}

	w, ok := byCategory[category]
	if !ok || now.Sub(w.start) >= limit.Window {
		byCategory[category] = &window{count: 1, start: now}
		return Decision{Allowed: true}
	}

	if w.count >= limit.Max {
		return Decision{Allowed: false, RetryAfter: limit.Window - now.Sub(w.start)}
	}

	w.count++
	return Decision{Allowed: true}
}

// Cleanup drops identities whose every window has been idle for longer
// than its limit duration. Call periodically to bound memory.
func (l *Limiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for identity, byCategory := range l.windows {
		for category, w := range byCategory {
			limit := l.limits[category]
			if now.Sub(w.start) >= limit.Window {
				delete(byCategory, category)
			}
		}
		if len(byCategory) == 0 {
			delete(l.windows, identity)
		}
	}
}
