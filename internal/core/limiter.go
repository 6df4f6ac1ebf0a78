package core

// limiter.go bounds how many generations run at once.
//
// Each generation holds every uploaded file and every rendered document in
// memory until the archive is written, so the number admitted in parallel is
// capped. A request that cannot get a slot within the configured wait fails
// with ErrTooManyGenerations and the client is told to retry.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrTooManyGenerations is returned when no slot frees up before the wait
// expires.
var ErrTooManyGenerations = errors.New("too many concurrent generations, please try again later")

const (
	DefaultMaxConcurrentGenerations = 4
	DefaultMaxWait                  = 30 * time.Second
)

// GenerationLimiter is a counting semaphore with drain support.
type GenerationLimiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu      sync.Mutex
	active  int
	drained chan struct{} // closed while active == 0
}

// NewGenerationLimiter admits at most maxConcurrent generations. Non-positive
// arguments select the defaults.
func NewGenerationLimiter(maxConcurrent int, maxWait time.Duration) *GenerationLimiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentGenerations
	}
	if maxWait <= 0 {
		maxWait = DefaultMaxWait
	}
	drained := make(chan struct{})
	close(drained)
	return &GenerationLimiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
		drained: drained,
	}
}

// Acquire waits for a slot. The caller must Release it when done.
func (l *GenerationLimiter) Acquire(ctx context.Context) error {
	timer := time.NewTimer(l.maxWait)
	defer timer.Stop()

	select {
	case l.slots <- struct{}{}:
		l.enter()
		return nil
	case <-timer.C:
		return ErrTooManyGenerations
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TryAcquire takes a slot only if one is free right now.
func (l *GenerationLimiter) TryAcquire() bool {
	select {
	case l.slots <- struct{}{}:
		l.enter()
		return true
	default:
		return false
	}
}

// Release returns a slot taken by Acquire or TryAcquire.
func (l *GenerationLimiter) Release() {
	l.mu.Lock()
	l.active--
	if l.active == 0 {
		close(l.drained)
	}
	l.mu.Unlock()
	<-l.slots
}

func (l *GenerationLimiter) enter() {
	l.mu.Lock()
	if l.active == 0 {
		l.drained = make(chan struct{})
	}
	l.active++
	l.mu.Unlock()
}

// WaitForDrain blocks until no generation is running. Used on shutdown.
func (l *GenerationLimiter) WaitForDrain(ctx context.Context) error {
	for {
		l.mu.Lock()
		if l.active == 0 {
			l.mu.Unlock()
			return nil
		}
		ch := l.drained
		l.mu.Unlock()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		}
	}
}

// ActiveCount is the number of generations holding a slot.
func (l *GenerationLimiter) ActiveCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.active
}

// MaxConcurrent is the slot capacity.
func (l *GenerationLimiter) MaxConcurrent() int {
	return cap(l.slots)
}

// Available is the number of free slots.
func (l *GenerationLimiter) Available() int {
	return cap(l.slots) - l.ActiveCount()
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"max_concurrent"`
}

func (l *GenerationLimiter) Status() LimiterStatus {
	active := l.ActiveCount()
	return LimiterStatus{
		Active:        active,
		Available:     cap(l.slots) - active,
		MaxConcurrent: cap(l.slots),
	}
}
