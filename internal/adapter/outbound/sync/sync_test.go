package sync

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/vetoguard/veto/internal/adapter/outbound/cache"
	"github.com/vetoguard/veto/internal/domain/rule"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

const oneToolRuleYAML = `
rules:
  - id: block-etc
    name: Block etc reads
    action: block
    conditions:
      - field: arguments.path
        operator: starts_with
        value: "/etc"
`

func TestTick_CompilesAndSwapsCacheEntry(t *testing.T) {
	rs, err := rule.Load("policy.yaml", []byte(oneToolRuleYAML))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	rs.Rules[0].Tools = []string{"read_file"}

	c := cache.New(10, time.Hour, nil)
	var updated []string
	s := New(
		func(ctx context.Context) (*rule.RuleSet, error) { return rs, nil },
		c, testLogger(),
		WithOnUpdate(func(tool string) { updated = append(updated, tool) }),
	)

	s.Tick(context.Background())

	if len(updated) != 1 || updated[0] != "read_file" {
		t.Fatalf("expected onUpdate(\"read_file\"), got %+v", updated)
	}
	if !c.Has(cache.Key{ToolName: "read_file", RuleSetHash: rs.Hash}) {
		t.Fatal("expected the compiled policy to be cached under the tool/hash key")
	}
}

func TestTick_FetchErrorInvokesOnErrorAndLeavesCacheAlone(t *testing.T) {
	c := cache.New(10, time.Hour, nil)
	fetchErr := errors.New("network down")
	var gotErr error
	s := New(
		func(ctx context.Context) (*rule.RuleSet, error) { return nil, fetchErr },
		c, testLogger(),
		WithOnError(func(err error) { gotErr = err }),
	)

	s.Tick(context.Background())

	if gotErr == nil || !errors.Is(gotErr, fetchErr) {
		t.Fatalf("expected onError to receive a wrapped fetchErr, got %v", gotErr)
	}
}

func TestTick_SkipsWhenAlreadyInFlight(t *testing.T) {
	c := cache.New(10, time.Hour, nil)
	started := make(chan struct{})
	release := make(chan struct{})
	var calls atomic.Int32

	s := New(
		func(ctx context.Context) (*rule.RuleSet, error) {
			calls.Add(1)
			close(started)
			<-release
			return &rule.RuleSet{}, nil
		},
		c, testLogger(),
	)

	go s.Tick(context.Background())
	<-started

	s.Tick(context.Background()) // should be a no-op: inFlight already true
	close(release)
	time.Sleep(10 * time.Millisecond)

	if calls.Load() != 1 {
		t.Fatalf("expected exactly 1 fetch call (second Tick skipped), got %d", calls.Load())
	}
}

func TestStartStop_LoopExitsCleanly(t *testing.T) {
	c := cache.New(10, time.Hour, nil)
	s := New(
		func(ctx context.Context) (*rule.RuleSet, error) { return &rule.RuleSet{}, nil },
		c, testLogger(),
		WithInterval(5*time.Millisecond),
	)

	s.Start(context.Background())
	time.Sleep(20 * time.Millisecond)
	s.Stop() // must return promptly, proving the goroutine doesn't block shutdown
}

func TestStartStop_ContextCancellationStopsLoop(t *testing.T) {
	c := cache.New(10, time.Hour, nil)
	s := New(
		func(ctx context.Context) (*rule.RuleSet, error) { return &rule.RuleSet{}, nil },
		c, testLogger(),
		WithInterval(5*time.Millisecond),
	)

	ctx, cancel := context.WithCancel(context.Background())
	s.Start(ctx)
	cancel()
	time.Sleep(10 * time.Millisecond)
	s.Stop()
}
