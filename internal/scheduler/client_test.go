package scheduler

import (
	"context"
	"testing"

	"github.com/hibiken/asynq"
)

type fakeEnqueuer struct {
	task *asynq.Task
	opts []asynq.Option
	err  error
}

func (f *fakeEnqueuer) EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	f.task = task
	f.opts = opts
	if f.err != nil {
		return nil, f.err
	}
	return &asynq.TaskInfo{}, nil
}

func (f *fakeEnqueuer) Close() error { return nil }

func TestEnqueueImportSync(t *testing.T) {
	enq := &fakeEnqueuer{}
	client := &Client{client: enq, queue: "imports"}

	err := client.EnqueueImportSync(context.Background(), ImportSyncPayload{
		TriggeredBy: "startup",
		Incremental: true,
		Notes:       "Initial startup import",
	})
	if err != nil {
		t.Fatalf("EnqueueImportSync: %v", err)
	}

	if enq.task == nil {
		t.Fatal("expected a task to be enqueued")
	}
	if enq.task.Type() != TaskImportSync {
		t.Errorf("task type = %q, want %q", enq.task.Type(), TaskImportSync)
	}

	payload, err := ParseImportSyncPayload(enq.task)
	if err != nil {
		t.Fatalf("ParseImportSyncPayload: %v", err)
	}
	if payload.TriggeredBy != "startup" || !payload.Incremental || payload.Notes != "Initial startup import" {
		t.Errorf("unexpected payload %+v", payload)
	}

	var queued bool
	for _, opt := range enq.opts {
		if opt.Type() == asynq.QueueOpt && opt.Value() == "imports" {
			queued = true
		}
	}
	if !queued {
		t.Error("expected the task to target the configured queue")
	}
}

func TestNewClientRequiresRedisURL(t *testing.T) {
	cfg := testSchedulerConfig{timezone: "UTC"}
	if _, err := NewClient(noRedisConfig{cfg}); err == nil {
		t.Fatal("expected error without a redis url")
	}
}

type noRedisConfig struct{ testSchedulerConfig }

func (noRedisConfig) GetRedisURL() string { return "" }
