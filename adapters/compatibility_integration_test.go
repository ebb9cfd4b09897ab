package adapters_test

import (
	"context"
	"testing"

	"github.com/goliatone/go-command"
	job "github.com/goliatone/go-job"
	jobqueuecommand "github.com/goliatone/go-job/queue/command"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-publisher/adapters/gocommand"
	"github.com/goliatone/go-publisher/adapters/gojob"
	"github.com/goliatone/go-publisher/adapters/gologger"
	publishercommand "github.com/goliatone/go-publisher/command"
	"github.com/goliatone/go-publisher/core"
)

func TestRuntimeCompatibility_GoJobGoCommandGoLogger(t *testing.T) {
	ctx := context.Background()

	logger := &compatLogger{}
	provider := &compatProvider{logger: logger}

	_, _, jobProvider, jobLogger := gologger.ResolveForJob("publisher", provider, nil)
	if jobProvider == nil || jobLogger == nil {
		t.Fatalf("expected go-job logger bridges")
	}

	enqueueProbe := &compatEnqueuer{}
	enqueueAdapter := gojob.NewEnqueuerAdapter(enqueueProbe)
	if err := enqueueAdapter.Enqueue(ctx, &core.JobExecutionMessage{
		JobID: core.JobIDDeliver,
		Parameters: map[string]any{
			"delivery_job_id": int64(9),
			"content_id":      int64(42),
			"platform":        "discord",
		},
		IdempotencyKey: "42-discord-1748781000000",
		DedupPolicy:    "drop",
	}); err != nil {
		t.Fatalf("enqueue via gojob adapter: %v", err)
	}
	if enqueueProbe.last == nil || enqueueProbe.last.JobID != core.JobIDDeliver {
		t.Fatalf("expected go-job message mapping through enqueuer adapter")
	}

	queueRegistry := jobqueuecommand.NewRegistry()
	commandAdapter := gocommand.NewRegistryAdapter(command.NewRegistry())
	if err := commandAdapter.AddQueueResolver("queue", queueRegistry); err != nil {
		t.Fatalf("add queue resolver: %v", err)
	}
	if err := commandAdapter.RegisterCommand(command.CommandFunc[compatMessage](func(context.Context, compatMessage) error {
		return nil
	})); err != nil {
		t.Fatalf("register command: %v", err)
	}
	if err := commandAdapter.Initialize(); err != nil {
		t.Fatalf("initialize command registry: %v", err)
	}
	if _, ok := queueRegistry.Get("publisher.compat.command"); !ok {
		t.Fatalf("expected command resolver hook to mirror command into go-job queue registry")
	}
}

func TestRuntimeCompatibility_CancelContentDispatchThroughWrappers(t *testing.T) {
	canceler := &compatCanceler{}
	adapter := gocommand.NewRegistryAdapter(command.NewRegistry())

	cancelSub, err := gocommand.RegisterAndSubscribe(adapter, publishercommand.NewCancelContentCommand(canceler))
	if err != nil {
		t.Fatalf("register cancel wrapper: %v", err)
	}
	defer cancelSub.Unsubscribe()

	if err := adapter.Initialize(); err != nil {
		t.Fatalf("initialize adapter: %v", err)
	}

	if err := gocommand.Dispatch(context.Background(), publishercommand.CancelContentMessage{ContentID: 42}); err != nil {
		t.Fatalf("dispatch cancel message: %v", err)
	}
	if canceler.calls != 1 || canceler.lastContentID != 42 {
		t.Fatalf("expected cancel wrapper invocation through dispatcher, got calls=%d content=%d",
			canceler.calls, canceler.lastContentID)
	}
}

type compatMessage struct{}

func (compatMessage) Type() string { return "publisher.compat.command" }

type compatEnqueuer struct {
	last *job.ExecutionMessage
}

func (e *compatEnqueuer) Enqueue(_ context.Context, msg *job.ExecutionMessage) error {
	e.last = msg
	return nil
}

type compatProvider struct {
	logger glog.Logger
}

func (p *compatProvider) GetLogger(string) glog.Logger {
	if p == nil || p.logger == nil {
		return glog.Nop()
	}
	return p.logger
}

type compatLogger struct{}

func (compatLogger) Trace(string, ...any)                    {}
func (compatLogger) Debug(string, ...any)                    {}
func (compatLogger) Info(string, ...any)                     {}
func (compatLogger) Warn(string, ...any)                     {}
func (compatLogger) Error(string, ...any)                    {}
func (compatLogger) Fatal(string, ...any)                    {}
func (compatLogger) WithContext(context.Context) glog.Logger { return compatLogger{} }

type compatCanceler struct {
	calls         int
	lastContentID int64
}

func (c *compatCanceler) CancelContent(_ context.Context, contentID int64) (int, error) {
	c.calls++
	c.lastContentID = contentID
	return 1, nil
}
