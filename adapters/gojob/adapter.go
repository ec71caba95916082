package gojob

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/goliatone/go-credits/core"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	JobIDOutboxDispatch = "credits.outbox.dispatch"

	ParamBatchSize = "batch_size"
	ParamAttempt   = "attempt"

	DefaultRetryDelay = 30 * time.Second
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.DeadLetter {
		out.Requeue = false
	}
	if p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Requeue = false
		if p.DeadLetterOnMax || out.DeadLetter {
			out.DeadLetter = true
		}
	}
	if !out.Requeue && !out.DeadLetter {
		out.Requeue = true
	}
	return out
}

// NewOutboxDispatchMessage builds the go-job message that asks a worker to
// deliver one batch of pending outbox events.
func NewOutboxDispatchMessage(batchSize int, idempotencyKey string) *job.ExecutionMessage {
	params := map[string]any{ParamAttempt: 0}
	if batchSize > 0 {
		params[ParamBatchSize] = batchSize
	}
	return &job.ExecutionMessage{
		JobID:          JobIDOutboxDispatch,
		ScriptPath:     JobIDOutboxDispatch,
		Parameters:     params,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		DedupPolicy:    job.DeduplicationPolicy("drop"),
	}
}

// BatchSizeFrom reads the batch size parameter. Zero means dispatcher default.
func BatchSizeFrom(msg *job.ExecutionMessage) int {
	if msg == nil {
		return 0
	}
	return intParam(msg.Parameters, ParamBatchSize)
}

// AttemptFrom reads how many times the message was already retried.
func AttemptFrom(msg *job.ExecutionMessage) int {
	if msg == nil {
		return 0
	}
	return intParam(msg.Parameters, ParamAttempt)
}

func intParam(params map[string]any, key string) int {
	raw, ok := params[key]
	if !ok {
		return 0
	}
	value := 0
	switch typed := raw.(type) {
	case int:
		value = typed
	case int64:
		value = int(typed)
	case float64:
		value = int(typed)
	case string:
		parsed, err := strconv.Atoi(strings.TrimSpace(typed))
		if err != nil {
			return 0
		}
		value = parsed
	}
	if value < 0 {
		return 0
	}
	return value
}

type OutboxEnqueuer struct {
	enqueuer queue.Enqueuer
}

func NewOutboxEnqueuer(enqueuer queue.Enqueuer) *OutboxEnqueuer {
	return &OutboxEnqueuer{enqueuer: enqueuer}
}

func (e *OutboxEnqueuer) EnqueueDispatch(ctx context.Context, batchSize int, idempotencyKey string) error {
	if e == nil || e.enqueuer == nil {
		return fmt.Errorf("gojob: enqueuer is not configured")
	}
	return e.enqueuer.Enqueue(ctx, NewOutboxDispatchMessage(batchSize, idempotencyKey))
}

type WorkerOption func(*OutboxWorker)

func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *OutboxWorker) {
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

func WithWorkerLogger(logger glog.Logger) WorkerOption {
	return func(w *OutboxWorker) {
		w.logger = glog.Ensure(logger)
	}
}

// OutboxWorker runs outbox dispatch jobs taken from a go-job queue.
// Per-event failures are retried by the outbox itself, so the job is only
// nacked when the batch could not be claimed at all.
type OutboxWorker struct {
	dispatcher core.Dispatcher
	policy     RetryPolicy
	retryDelay time.Duration
	logger     glog.Logger
}

func NewOutboxWorker(dispatcher core.Dispatcher, policy RetryPolicy, opts ...WorkerOption) (*OutboxWorker, error) {
	if dispatcher == nil {
		return nil, fmt.Errorf("gojob: outbox dispatcher is required")
	}
	w := &OutboxWorker{
		dispatcher: dispatcher,
		policy:     policy,
		retryDelay: DefaultRetryDelay,
		logger:     glog.Nop(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func (w *OutboxWorker) ProcessNext(ctx context.Context, dequeuer queue.Dequeuer) (core.DispatchStats, error) {
	if dequeuer == nil {
		return core.DispatchStats{}, fmt.Errorf("gojob: dequeuer is not configured")
	}
	delivery, err := dequeuer.Dequeue(ctx)
	if err != nil {
		return core.DispatchStats{}, err
	}
	return w.Process(ctx, delivery)
}

func (w *OutboxWorker) Process(ctx context.Context, delivery queue.Delivery) (core.DispatchStats, error) {
	if w == nil || w.dispatcher == nil {
		return core.DispatchStats{}, fmt.Errorf("gojob: outbox worker is not configured")
	}
	if delivery == nil {
		return core.DispatchStats{}, fmt.Errorf("gojob: delivery is required")
	}
	msg := delivery.Message()
	if msg == nil || strings.TrimSpace(msg.JobID) != JobIDOutboxDispatch {
		jobID := ""
		if msg != nil {
			jobID = msg.JobID
		}
		reason := fmt.Sprintf("unsupported job %q", jobID)
		if err := delivery.Nack(ctx, queue.NackOptions{DeadLetter: true, Reason: reason}); err != nil {
			return core.DispatchStats{}, err
		}
		return core.DispatchStats{}, fmt.Errorf("gojob: %s", reason)
	}

	stats, err := w.dispatcher.DispatchPending(ctx, BatchSizeFrom(msg))
	if err != nil && stats.Claimed == 0 {
		attempt := AttemptFrom(msg) + 1
		msg.Parameters = copyAnyMap(msg.Parameters)
		msg.Parameters[ParamAttempt] = attempt
		opts := w.policy.NormalizeAttempt(queue.NackOptions{
			Delay:   w.retryDelay,
			Requeue: true,
			Reason:  err.Error(),
		}, attempt)
		w.logger.Error("credits outbox dispatch failed",
			"job_id", msg.JobID,
			"attempt", attempt,
			"requeue", opts.Requeue,
			"error", err,
		)
		if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
			return stats, fmt.Errorf("%w; nack: %v", err, nackErr)
		}
		return stats, err
	}
	if err != nil {
		w.logger.Warn("credits outbox events scheduled for retry",
			"claimed", stats.Claimed,
			"retried", stats.Retried,
			"failed", stats.Failed,
			"error", err,
		)
	}
	w.logger.Info("credits outbox dispatched",
		"claimed", stats.Claimed,
		"delivered", stats.Delivered,
		"unrouted", stats.Unrouted,
		"retried", stats.Retried,
		"failed", stats.Failed,
	)
	if ackErr := delivery.Ack(ctx); ackErr != nil {
		return stats, ackErr
	}
	return stats, nil
}

// DispatchEvent is the worker lifecycle view handed to DispatchHook.
type DispatchEvent struct {
	JobID     string
	BatchSize int
	Attempt   int
	Delay     time.Duration
	Err       error
	StartedAt time.Time
	Duration  time.Duration
}

type DispatchHook interface {
	OnStart(ctx context.Context, event DispatchEvent)
	OnSuccess(ctx context.Context, event DispatchEvent)
	OnFailure(ctx context.Context, event DispatchEvent)
	OnRetry(ctx context.Context, event DispatchEvent)
}

type WorkerHookAdapter struct {
	hook DispatchHook
}

func NewWorkerHookAdapter(hook DispatchHook) *WorkerHookAdapter {
	return &WorkerHookAdapter{hook: hook}
}

func (a *WorkerHookAdapter) OnStart(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnStart(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnSuccess(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnSuccess(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnFailure(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnFailure(ctx, mapWorkerEvent(event))
}

func (a *WorkerHookAdapter) OnRetry(ctx context.Context, event worker.Event) {
	if a == nil || a.hook == nil {
		return
	}
	a.hook.OnRetry(ctx, mapWorkerEvent(event))
}

func mapWorkerEvent(event worker.Event) DispatchEvent {
	message := event.Message
	if message == nil && event.Delivery != nil {
		message = event.Delivery.Message()
	}
	out := DispatchEvent{
		Attempt:   event.Attempt,
		Delay:     event.Delay,
		Err:       event.Err,
		StartedAt: event.StartedAt,
		Duration:  event.Duration,
	}
	if message != nil {
		out.JobID = strings.TrimSpace(message.JobID)
		out.BatchSize = BatchSizeFrom(message)
	}
	return out
}

// LogHook reports worker lifecycle events through glog.
type LogHook struct {
	logger glog.Logger
}

func NewLogHook(logger glog.Logger) *LogHook {
	return &LogHook{logger: glog.Ensure(logger)}
}

func (h *LogHook) OnStart(ctx context.Context, event DispatchEvent) {
	h.log(ctx, "debug", "credits dispatch job started", event)
}

func (h *LogHook) OnSuccess(ctx context.Context, event DispatchEvent) {
	h.log(ctx, "info", "credits dispatch job succeeded", event)
}

func (h *LogHook) OnFailure(ctx context.Context, event DispatchEvent) {
	h.log(ctx, "error", "credits dispatch job failed", event)
}

func (h *LogHook) OnRetry(ctx context.Context, event DispatchEvent) {
	h.log(ctx, "warn", "credits dispatch job retrying", event)
}

func (h *LogHook) log(ctx context.Context, level string, msg string, event DispatchEvent) {
	if h == nil || h.logger == nil {
		return
	}
	args := []any{
		"job_id", event.JobID,
		"batch_size", event.BatchSize,
		"attempt", event.Attempt,
		"duration_ms", event.Duration.Milliseconds(),
	}
	if event.Delay > 0 {
		args = append(args, "delay_ms", event.Delay.Milliseconds())
	}
	if event.Err != nil {
		args = append(args, "error", event.Err.Error())
	}
	logger := h.logger.WithContext(ctx)
	switch level {
	case "debug":
		logger.Debug(msg, args...)
	case "warn":
		logger.Warn(msg, args...)
	case "error":
		logger.Error(msg, args...)
	default:
		logger.Info(msg, args...)
	}
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ worker.Hook  = (*WorkerHookAdapter)(nil)
	_ DispatchHook = (*LogHook)(nil)
)
