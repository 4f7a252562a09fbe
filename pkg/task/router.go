package task

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"github.com/small-frappuccino/confessbot/pkg/log"
)

// TaskHandler is a function that processes a task payload.
type TaskHandler func(ctx context.Context, payload any) error

// TaskOptions configures how a task is dispatched and executed.
type TaskOptions struct {
	// GroupKey serializes execution for tasks that share the same group.
	// If empty, tasks use a global group.
	GroupKey string

	// IdempotencyKey deduplicates tasks enqueued within the IdempotencyTTL
	// window.
	IdempotencyKey string

	// MaxAttempts controls how many times the task may be retried on handler error.
	MaxAttempts int

	// InitialBackoff sets the initial retry backoff.
	InitialBackoff time.Duration

	// MaxBackoff caps the exponential backoff.
	MaxBackoff time.Duration

	// IdempotencyTTL controls how long the idempotency key is kept.
	IdempotencyTTL time.Duration
}

// Task encapsulates the work to be executed by the router.
type Task struct {
	Type    string
	Payload any
	Options TaskOptions
}

// RouterConfig configures the TaskRouter behavior. Zero values fall back to Defaults().
type RouterConfig struct {
	DefaultMaxAttempts int
	InitialBackoff     time.Duration
	MaxBackoff         time.Duration
	IdempotencyTTL     time.Duration
	GroupBuffer        int
	CleanupInterval    time.Duration
}

// Defaults returns a RouterConfig with sensible defaults.
func Defaults() RouterConfig {
	return RouterConfig{
		DefaultMaxAttempts: 3,
		InitialBackoff:     1 * time.Second,
		MaxBackoff:         30 * time.Second,
		IdempotencyTTL:     60 * time.Second,
		GroupBuffer:        128,
		CleanupInterval:    2 * time.Minute,
	}
}

// Errors returned by the router.
var (
	ErrRouterClosed    = errors.New("task router is closed")
	ErrUnknownTaskType = errors.New("unknown task type")
	ErrDuplicateTask   = errors.New("duplicate task (idempotency key present)")
)

const globalGroup = "_global"

// TaskRouter is an in-memory dispatcher with per-group serialization,
// idempotency (dedupe), and retry with exponential backoff.
type TaskRouter struct {
	mu       sync.RWMutex
	handlers map[string]TaskHandler
	groups   map[string]chan *enqueuedTask
	inflight map[string]time.Time // idempotencyKey -> expiry
	closed   bool
	cfg      RouterConfig
	wg       sync.WaitGroup
	stopOnce sync.Once
	stopCh   chan struct{}

	randMu sync.Mutex // jitter RNG
}

type enqueuedTask struct {
	task    Task
	attempt int
}

// NewRouter creates a new TaskRouter with the provided configuration.
func NewRouter(cfg RouterConfig) *TaskRouter {
	def := Defaults()
	if cfg.DefaultMaxAttempts <= 0 {
		cfg.DefaultMaxAttempts = def.DefaultMaxAttempts
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = def.InitialBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = def.MaxBackoff
	}
	if cfg.IdempotencyTTL <= 0 {
		cfg.IdempotencyTTL = def.IdempotencyTTL
	}
	if cfg.GroupBuffer <= 0 {
		cfg.GroupBuffer = def.GroupBuffer
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}

	tr := &TaskRouter{
		handlers: make(map[string]TaskHandler),
		groups:   make(map[string]chan *enqueuedTask),
		inflight: make(map[string]time.Time),
		cfg:      cfg,
		stopCh:   make(chan struct{}),
	}

	tr.wg.Add(1)
	go tr.backgroundLoop()
	return tr
}

// RegisterHandler registers a handler for the given task type.
func (tr *TaskRouter) RegisterHandler(taskType string, handler TaskHandler) {
	tr.mu.Lock()
	defer tr.mu.Unlock()
	tr.handlers[taskType] = handler
}

// Dispatch enqueues a task for execution, respecting grouping and idempotency.
// Returns ErrUnknownTaskType if no handler is registered and ErrDuplicateTask
// when a non-expired IdempotencyKey already exists.
func (tr *TaskRouter) Dispatch(ctx context.Context, t Task) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	if tr.closed {
		return ErrRouterClosed
	}

	handler, ok := tr.handlers[t.Type]
	if !ok || handler == nil {
		return ErrUnknownTaskType
	}

	eff := tr.effectiveOptions(t.Options)

	if eff.IdempotencyKey != "" {
		if expiry, exists := tr.inflight[eff.IdempotencyKey]; exists && time.Now().Before(expiry) {
			return ErrDuplicateTask
		}
		tr.inflight[eff.IdempotencyKey] = time.Now().Add(eff.IdempotencyTTL)
	}

	groupKey := eff.GroupKey
	if groupKey == "" {
		groupKey = globalGroup
	}
	ch := tr.ensureGroupLocked(groupKey)

	select {
	case ch <- &enqueuedTask{task: t, attempt: 1}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Deduplicate claims key in the idempotency index without enqueueing any
// work, returning false when a non-expired claim already exists. The
// interaction dispatcher uses this to drop duplicate gateway deliveries while
// running handlers on their own goroutines.
func (tr *TaskRouter) Deduplicate(key string) bool {
	if key == "" {
		return true
	}
	tr.mu.Lock()
	defer tr.mu.Unlock()
	if tr.closed {
		return false
	}
	if expiry, exists := tr.inflight[key]; exists && time.Now().Before(expiry) {
		return false
	}
	tr.inflight[key] = time.Now().Add(tr.cfg.IdempotencyTTL)
	return true
}

// DispatchAfter schedules a one-shot dispatch of the task after the delay.
// Best-effort: dispatch errors after the delay are logged, not returned.
func (tr *TaskRouter) DispatchAfter(delay time.Duration, t Task) {
	tr.wg.Add(1)
	go func() {
		defer tr.wg.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
			if err := tr.Dispatch(context.Background(), t); err != nil {
				log.ApplicationLogger().Warn("Delayed task dropped", "type", t.Type, "err", err)
			}
		case <-tr.stopCh:
		}
	}()
}

// Close gracefully stops the router and waits for background goroutines.
// Enqueued tasks that are not yet picked up may be dropped.
func (tr *TaskRouter) Close() {
	tr.stopOnce.Do(func() {
		tr.mu.Lock()
		tr.closed = true
		for _, ch := range tr.groups {
			close(ch)
		}
		tr.mu.Unlock()
		close(tr.stopCh)
		tr.wg.Wait()
	})
}

// Stats provides a snapshot with counts useful for debugging.
type Stats struct {
	GroupsCount     int
	InflightCount   int
	RouterClosed    bool
	RegisteredTypes int
}

func (tr *TaskRouter) Stats() Stats {
	tr.mu.RLock()
	defer tr.mu.RUnlock()
	return Stats{
		GroupsCount:     len(tr.groups),
		InflightCount:   len(tr.inflight),
		RouterClosed:    tr.closed,
		RegisteredTypes: len(tr.handlers),
	}
}

// --- Internals ---

func (tr *TaskRouter) effectiveOptions(opt TaskOptions) TaskOptions {
	if opt.MaxAttempts <= 0 {
		opt.MaxAttempts = tr.cfg.DefaultMaxAttempts
	}
	if opt.InitialBackoff <= 0 {
		opt.InitialBackoff = tr.cfg.InitialBackoff
	}
	if opt.MaxBackoff <= 0 {
		opt.MaxBackoff = tr.cfg.MaxBackoff
	}
	if opt.IdempotencyTTL <= 0 {
		opt.IdempotencyTTL = tr.cfg.IdempotencyTTL
	}
	return opt
}

func (tr *TaskRouter) ensureGroupLocked(key string) chan *enqueuedTask {
	if ch, ok := tr.groups[key]; ok {
		return ch
	}
	ch := make(chan *enqueuedTask, tr.cfg.GroupBuffer)
	tr.groups[key] = ch
	tr.wg.Add(1)
	go tr.groupLoop(key, ch)
	return ch
}

func (tr *TaskRouter) groupLoop(key string, ch chan *enqueuedTask) {
	defer tr.wg.Done()

	for enq := range ch {
		tr.mu.RLock()
		handler := tr.handlers[enq.task.Type]
		eff := tr.effectiveOptions(enq.task.Options)
		tr.mu.RUnlock()

		if handler == nil {
			log.ApplicationLogger().Warn("Task dropped (handler not registered)", "type", enq.task.Type, "group", key)
			continue
		}

		err := handler(context.Background(), enq.task.Payload)
		if err == nil {
			continue
		}

		if enq.attempt >= eff.MaxAttempts {
			log.ErrorLoggerRaw().Error("Task failed; max attempts reached",
				"type", enq.task.Type,
				"group", key,
				"attempts", enq.attempt,
				"err", err,
			)
			continue
		}

		delay := tr.computeBackoff(eff.InitialBackoff, eff.MaxBackoff, enq.attempt)
		enq.attempt++
		log.ApplicationLogger().Warn("Task failed, scheduling retry",
			"type", enq.task.Type,
			"group", key,
			"attempt", enq.attempt,
			"max_attempts", eff.MaxAttempts,
			"backoff", delay.String(),
			"err", err,
		)

		// Re-enqueue after backoff on the same group.
		tr.wg.Add(1)
		go func(et *enqueuedTask, d time.Duration) {
			defer tr.wg.Done()
			timer := time.NewTimer(d)
			defer timer.Stop()
			select {
			case <-timer.C:
				tr.mu.RLock()
				g, ok := tr.groups[key]
				closed := tr.closed
				tr.mu.RUnlock()
				if !ok || closed {
					return
				}
				select {
				case g <- et:
				case <-tr.stopCh:
				}
			case <-tr.stopCh:
			}
		}(enq, delay)
	}
}

func (tr *TaskRouter) computeBackoff(initial, max time.Duration, attempt int) time.Duration {
	// Exponential backoff with jitter: initial * 2^(attempt-1)
	backoff := initial
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if backoff > max {
			backoff = max
			break
		}
	}
	jitter := tr.jitter(backoff, 0.1)
	return clampDuration(backoff+jitter, initial, max)
}

func (tr *TaskRouter) jitter(d time.Duration, ratio float64) time.Duration {
	if ratio <= 0 {
		return 0
	}
	tr.randMu.Lock()
	defer tr.randMu.Unlock()
	delta := int64(float64(d) * ratio)
	if delta <= 0 {
		return 0
	}
	// random in [-delta, +delta]
	n := rand.Int63n(2*delta+1) - delta
	return time.Duration(n)
}

func clampDuration(v, lo, hi time.Duration) time.Duration {
	return max(min(v, hi), lo)
}

func (tr *TaskRouter) backgroundLoop() {
	defer tr.wg.Done()
	t := time.NewTicker(tr.cfg.CleanupInterval)
	defer t.Stop()
	for {
		select {
		case <-tr.stopCh:
			return
		case <-t.C:
			tr.cleanupOnce()
		}
	}
}

func (tr *TaskRouter) cleanupOnce() {
	now := time.Now()
	tr.mu.Lock()
	for k, expiry := range tr.inflight {
		if now.After(expiry) {
			delete(tr.inflight, k)
		}
	}
	tr.mu.Unlock()
}
