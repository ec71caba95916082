package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-command"
	credits "github.com/goliatone/go-credits"
	"github.com/goliatone/go-credits/adapters/gocommand"
	"github.com/goliatone/go-credits/adapters/gojob"
	"github.com/goliatone/go-credits/api"
	creditscommand "github.com/goliatone/go-credits/command"
	"github.com/goliatone/go-credits/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
)

type MigrateCmd struct{}

func (c *MigrateCmd) Run(g *Globals, ctx context.Context) error {
	client, err := openClient(g)
	if err != nil {
		return err
	}
	defer client.Close()
	if err := migrate(ctx, g, client); err != nil {
		return err
	}
	fmt.Println("credits schema is up to date")
	return nil
}

type DeployCmd struct {
	Registry    DeployRegistryCmd    `cmd:"" help:"Initialize the credit registry."`
	Marketplace DeployMarketplaceCmd `cmd:"" help:"Initialize the marketplace against a registry."`
}

type DeployRegistryCmd struct {
	Name   string `help:"Collection name." required:""`
	Symbol string `help:"Collection symbol." required:""`
	Owner  string `help:"Account that becomes the registry owner." required:""`
}

func (c *DeployRegistryCmd) Run(g *Globals, ctx context.Context) error {
	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	return dispatchAs(ctx, rt, creditscommand.InitializeRegistryMessage{
		Caller:  strings.TrimSpace(c.Owner),
		Request: credits.InitializeRegistryRequest{Name: c.Name, Symbol: c.Symbol},
	})
}

type DeployMarketplaceCmd struct {
	Registry string `help:"Registry contract the marketplace trades." default:"carbon_credit_nft"`
	Owner    string `help:"Account that becomes the marketplace owner." required:""`
}

func (c *DeployMarketplaceCmd) Run(g *Globals, ctx context.Context) error {
	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	return dispatchAs(ctx, rt, creditscommand.InitializeMarketplaceMessage{
		Caller:  strings.TrimSpace(c.Owner),
		Request: credits.InitializeMarketplaceRequest{CarbonCreditNFT: c.Registry},
	})
}

// dispatchAs routes a single command through the go-command registry so the
// CLI shares validation and error mapping with every other entry point.
func dispatchAs[T interface{ Type() string }](ctx context.Context, rt *runtime, msg T) error {
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	subs, err := gocommand.RegisterCreditCommands(adapter, rt.service.Registry(), rt.service.Marketplace())
	if err != nil {
		return err
	}
	defer subs.Unsubscribe()
	if err := adapter.Initialize(); err != nil {
		return err
	}
	if err := gocommand.Dispatch(ctx, msg); err != nil {
		return err
	}
	rt.component("cli").Info("command dispatched", "type", msg.Type())
	return nil
}

type FundCmd struct {
	Account string `help:"Account to credit." required:""`
	Amount  string `help:"Amount of the settlement asset." required:""`
	Symbol  string `help:"Settlement asset symbol. Defaults to the registry settlement symbol."`
}

func (c *FundCmd) Run(g *Globals, ctx context.Context) error {
	amount, err := decimal.NewFromString(strings.TrimSpace(c.Amount))
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", c.Amount, err)
	}
	if !amount.IsPositive() {
		return fmt.Errorf("amount must be positive")
	}
	account := strings.TrimSpace(c.Account)
	if account == "" {
		return fmt.Errorf("account is required")
	}

	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	symbol := strings.TrimSpace(c.Symbol)
	if symbol == "" {
		symbol = rt.service.Config().Registry.SettlementSymbol
	}
	var balance decimal.Decimal
	err = rt.stores.Store.RunInTx(ctx, func(ctx context.Context, tx core.Tx) error {
		if err := tx.Balances().Credit(ctx, symbol, account, amount); err != nil {
			return err
		}
		var balanceErr error
		balance, balanceErr = tx.Balances().Balance(ctx, symbol, account)
		return balanceErr
	})
	if err != nil {
		return err
	}
	fmt.Printf("%s balance: %s %s\n", account, balance.StringFixed(8), symbol)
	return nil
}

type ServeCmd struct {
	Addr            string        `help:"Listen address." default:":8080" env:"CREDITS_HTTP_ADDR"`
	BasePath        string        `help:"Route prefix for the API." env:"CREDITS_HTTP_BASE_PATH"`
	ShutdownTimeout time.Duration `help:"Graceful shutdown timeout." default:"10s"`
}

func (c *ServeCmd) Run(g *Globals, ctx context.Context) error {
	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	facade, err := credits.NewFacadeFromService(rt.service)
	if err != nil {
		return err
	}
	logger := rt.component("api")
	router, err := api.NewRouter(facade, api.WithLogger(logger), api.WithBasePath(c.BasePath))
	if err != nil {
		return err
	}
	logger.Info("credits api listening", "addr", c.Addr)
	return api.Serve(ctx, c.Addr, router, c.ShutdownTimeout)
}

type DispatchCmd struct {
	Batch    int    `help:"Events claimed per run. Zero uses the configured batch size."`
	Schedule string `help:"Cron expression to keep dispatching on a schedule, e.g. '*/30 * * * * *'."`
}

func (c *DispatchCmd) Run(g *Globals, ctx context.Context) error {
	rt, err := newRuntime(ctx, g)
	if err != nil {
		return err
	}
	defer rt.Close()

	worker, err := newDispatchWorker(rt)
	if err != nil {
		return err
	}

	schedule := strings.TrimSpace(c.Schedule)
	if schedule == "" {
		stats, err := worker.runOnce(ctx, c.Batch)
		fmt.Printf("claimed=%d delivered=%d retried=%d failed=%d\n",
			stats.Claimed, stats.Delivered, stats.Retried, stats.Failed)
		return err
	}
	return worker.runScheduled(ctx, schedule, c.Batch)
}

// Dispatch jobs that cannot claim a batch are retried by the job queue.
// Events that fail delivery are retried by the outbox itself.
var dispatchRetryPolicy = gojob.RetryPolicy{
	MaxAttempts:     3,
	MaxDelay:        time.Minute,
	DeadLetterOnMax: true,
}

const dispatchRetryDelay = 5 * time.Second

// dispatchWorker feeds outbox dispatch jobs through an in-process go-job
// queue into the outbox worker.
type dispatchWorker struct {
	queue  *memoryQueue
	worker *gojob.OutboxWorker
	hook   gojob.DispatchHook
	rt     *runtime
}

func newDispatchWorker(rt *runtime) (*dispatchWorker, error) {
	handlers := core.NewEventHandlerRegistry()
	handlers.Register(core.DefaultLogHandlerName, core.NewLogEventHandler(rt.component("events")))

	dispatcher, err := core.NewEventDispatcher(rt.stores.OutboxStore, handlers,
		rt.service.Config().Outbox.DispatcherConfig(),
	)
	if err != nil {
		return nil, err
	}
	logger := rt.component("dispatch")
	worker, err := gojob.NewOutboxWorker(dispatcher, dispatchRetryPolicy,
		gojob.WithWorkerLogger(logger), gojob.WithRetryDelay(dispatchRetryDelay))
	if err != nil {
		return nil, err
	}
	return &dispatchWorker{
		queue:  newMemoryQueue(),
		worker: worker,
		hook:   gojob.NewLogHook(logger),
		rt:     rt,
	}, nil
}

// runOnce processes the next ready dispatch job. A fresh job is enqueued
// only when no earlier job is still waiting on its retry delay.
func (w *dispatchWorker) runOnce(ctx context.Context, batch int) (core.DispatchStats, error) {
	if w.queue.Pending() == 0 {
		idem := fmt.Sprintf("dispatch-%d", time.Now().UnixNano())
		if err := gojob.NewOutboxEnqueuer(w.queue).EnqueueDispatch(ctx, batch, idem); err != nil {
			return core.DispatchStats{}, err
		}
	}
	event := gojob.DispatchEvent{JobID: gojob.JobIDOutboxDispatch, BatchSize: batch, StartedAt: time.Now()}
	w.hook.OnStart(ctx, event)
	stats, err := w.worker.ProcessNext(ctx, w.queue)
	event.Duration = time.Since(event.StartedAt)
	event.Err = err
	if err != nil {
		w.hook.OnFailure(ctx, event)
		return stats, err
	}
	w.hook.OnSuccess(ctx, event)
	return stats, nil
}

func (w *dispatchWorker) runScheduled(ctx context.Context, schedule string, batch int) error {
	logger := w.rt.component("dispatch")
	scheduler := cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := scheduler.AddFunc(schedule, func() {
		if _, err := w.runOnce(ctx, batch); err != nil {
			logger.Warn("scheduled outbox dispatch failed", "error", err)
		}
	}); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	logger.Info("outbox dispatch scheduled", "schedule", schedule)
	scheduler.Start()
	<-ctx.Done()
	stopped := scheduler.Stop()
	<-stopped.Done()
	logger.Info("outbox dispatch stopped")
	return nil
}

// memoryQueue is a single-process go-job queue holding dispatch jobs. Nacked
// jobs are requeued after their delay or parked as dead letters.
type memoryQueue struct {
	mu      sync.Mutex
	now     func() time.Time
	pending []queuedJob
	dead    []*job.ExecutionMessage
}

type queuedJob struct {
	msg     *job.ExecutionMessage
	readyAt time.Time
}

func newMemoryQueue() *memoryQueue {
	return &memoryQueue{now: time.Now}
}

func (q *memoryQueue) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	if msg == nil {
		return fmt.Errorf("message is required")
	}
	q.push(msg, 0)
	return nil
}

func (q *memoryQueue) push(msg *job.ExecutionMessage, delay time.Duration) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, queuedJob{msg: msg, readyAt: q.now().Add(delay)})
}

func (q *memoryQueue) Dequeue(context.Context) (queue.Delivery, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := q.now()
	for i, queued := range q.pending {
		if queued.readyAt.After(now) {
			continue
		}
		q.pending = append(q.pending[:i], q.pending[i+1:]...)
		return &memoryDelivery{queue: q, msg: queued.msg}, nil
	}
	if len(q.pending) > 0 {
		return nil, fmt.Errorf("dispatch job is waiting for its retry delay")
	}
	return nil, fmt.Errorf("no dispatch job queued")
}

// Pending reports jobs waiting to run, including delayed retries.
func (q *memoryQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *memoryQueue) DeadLetters() []*job.ExecutionMessage {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]*job.ExecutionMessage(nil), q.dead...)
}

type memoryDelivery struct {
	queue *memoryQueue
	msg   *job.ExecutionMessage
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.msg
}

func (d *memoryDelivery) Ack(context.Context) error {
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	if d.queue == nil || d.msg == nil {
		return nil
	}
	switch {
	case opts.DeadLetter:
		d.queue.mu.Lock()
		d.queue.dead = append(d.queue.dead, d.msg)
		d.queue.mu.Unlock()
	case opts.Requeue:
		d.queue.push(d.msg, opts.Delay)
	}
	return nil
}

var (
	_ queue.Enqueuer = (*memoryQueue)(nil)
	_ queue.Dequeuer = (*memoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
