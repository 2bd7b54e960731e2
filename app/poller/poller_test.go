package poller

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"samco-studio/app/config"
	"samco-studio/app/model"
	"samco-studio/app/provider"
)

// scriptedQuerier 按顺序返回预设结果，用完后重复最后一个
type scriptedQuerier struct {
	mu      sync.Mutex
	steps   []step
	queries int
}

type step struct {
	snap provider.TaskSnapshot
	err  error
}

func (q *scriptedQuerier) QueryTask(ctx context.Context, taskID string, kind model.TaskKind) (provider.TaskSnapshot, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	i := q.queries
	if i >= len(q.steps) {
		i = len(q.steps) - 1
	}
	q.queries++
	s := q.steps[i]
	s.snap.TaskID = taskID
	return s.snap, s.err
}

func (q *scriptedQuerier) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.queries
}

func processing() step {
	return step{snap: provider.TaskSnapshot{Status: model.TaskStatusProcessing}}
}

func succeed(url string) step {
	return step{snap: provider.TaskSnapshot{Status: model.TaskStatusSucceeded, ResultURL: url}}
}

type sleepRecorder struct {
	calls []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.calls = append(s.calls, d)
	return nil
}

func newPoller(q Querier, maxAttempts int, rec *sleepRecorder) *Poller {
	return &Poller{
		Querier:     q,
		MaxAttempts: maxAttempts,
		Interval:    5 * time.Second,
		Sleep:       rec.sleep,
	}
}

func TestPollSucceedsAfterExactlyKQueries(t *testing.T) {
	for _, k := range []int{1, 2, 7, 120} {
		steps := make([]step, 0, k)
		for i := 1; i < k; i++ {
			steps = append(steps, processing())
		}
		steps = append(steps, succeed("https://cdn/video.mp4"))

		q := &scriptedQuerier{steps: steps}
		rec := &sleepRecorder{}
		url, err := newPoller(q, 120, rec).PollUntilDone(context.Background(), "task", model.TaskKindTextToVideo)
		if err != nil {
			t.Fatalf("k=%d: %v", k, err)
		}
		if url != "https://cdn/video.mp4" {
			t.Fatalf("k=%d: url = %q", k, url)
		}
		if q.count() != k {
			t.Fatalf("k=%d: queries = %d", k, q.count())
		}
		if len(rec.calls) != k-1 {
			t.Fatalf("k=%d: sleeps = %d, want %d", k, len(rec.calls), k-1)
		}
	}
}

func TestPollStopsImmediatelyOnFailure(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		processing(),
		{snap: provider.TaskSnapshot{Status: model.TaskStatusFailed, FailureMessage: "content policy violation"}},
		succeed("https://cdn/never.mp4"),
	}}
	rec := &sleepRecorder{}
	_, err := newPoller(q, 120, rec).PollUntilDone(context.Background(), "t-fail", model.TaskKindImageToVideo)

	var jobErr *JobFailedError
	if !errors.As(err, &jobErr) {
		t.Fatalf("expected JobFailedError, got %T %v", err, err)
	}
	if jobErr.Message != "content policy violation" {
		t.Fatalf("message = %q", jobErr.Message)
	}
	if q.count() != 2 {
		t.Fatalf("queries = %d, want 2", q.count())
	}
}

func TestPollTimesOutAfterMaxAttempts(t *testing.T) {
	q := &scriptedQuerier{steps: []step{processing()}}
	rec := &sleepRecorder{}
	_, err := newPoller(q, 120, rec).PollUntilDone(context.Background(), "slow", model.TaskKindTextToVideo)

	var timeout *PollTimeoutError
	if !errors.As(err, &timeout) {
		t.Fatalf("expected PollTimeoutError, got %T %v", err, err)
	}
	if q.count() != 120 {
		t.Fatalf("queries = %d, want 120", q.count())
	}
	// 最后一次查询后不再等待
	if len(rec.calls) != 119 {
		t.Fatalf("sleeps = %d, want 119", len(rec.calls))
	}
	// 119 次间隔，每次 5 秒
	if timeout.Waited != 9*time.Minute+55*time.Second {
		t.Fatalf("waited = %v, want 9m55s", timeout.Waited)
	}
	if !strings.Contains(timeout.Error(), "9m55s") {
		t.Fatalf("timeout message should state the wait: %q", timeout.Error())
	}
}

func TestPollMissingResultURL(t *testing.T) {
	q := &scriptedQuerier{steps: []step{succeed("")}}
	url, err := newPoller(q, 120, &sleepRecorder{}).PollUntilDone(context.Background(), "empty", model.TaskKindTextToVideo)
	if url != "" {
		t.Fatalf("url = %q", url)
	}
	var missing *MissingResultError
	if !errors.As(err, &missing) {
		t.Fatalf("expected MissingResultError, got %T %v", err, err)
	}
}

func TestPollPropagatesTransportError(t *testing.T) {
	transport := &provider.ProviderError{Op: "query_task", Message: "connection reset", Err: errors.New("connection reset")}
	q := &scriptedQuerier{steps: []step{processing(), {err: transport}, succeed("https://cdn/x.mp4")}}
	_, err := newPoller(q, 120, &sleepRecorder{}).PollUntilDone(context.Background(), "net", model.TaskKindTextToVideo)

	var perr *provider.ProviderError
	if !errors.As(err, &perr) {
		t.Fatalf("expected ProviderError, got %v", err)
	}
	if q.count() != 2 {
		t.Fatalf("queries = %d, want 2", q.count())
	}
}

func TestPollRetriesTransportErrorsWhenConfigured(t *testing.T) {
	transport := &provider.ProviderError{Op: "query_task", Message: "timeout", Err: errors.New("timeout")}
	q := &scriptedQuerier{steps: []step{{err: transport}, {err: transport}, succeed("https://cdn/ok.mp4")}}
	p := newPoller(q, 120, &sleepRecorder{})
	p.TransportRetries = 2

	url, err := p.PollUntilDone(context.Background(), "retry", model.TaskKindTextToVideo)
	if err != nil {
		t.Fatalf("PollUntilDone: %v", err)
	}
	if url != "https://cdn/ok.mp4" || q.count() != 3 {
		t.Fatalf("url = %q, queries = %d", url, q.count())
	}

	// HTTP 错误不是网络错误，不重试
	httpErr := &provider.ProviderError{Op: "query_task", StatusCode: http.StatusBadGateway, Message: "bad gateway"}
	q = &scriptedQuerier{steps: []step{{err: httpErr}, succeed("https://cdn/ok.mp4")}}
	p = newPoller(q, 120, &sleepRecorder{})
	p.TransportRetries = 2
	if _, err := p.PollUntilDone(context.Background(), "http", model.TaskKindTextToVideo); err == nil {
		t.Fatalf("expected http error to propagate")
	}
	if q.count() != 1 {
		t.Fatalf("queries = %d, want 1", q.count())
	}
}

func TestPollHonoursCancellation(t *testing.T) {
	q := &scriptedQuerier{steps: []step{processing()}}
	ctx, cancel := context.WithCancel(context.Background())
	p := &Poller{
		Querier:     q,
		MaxAttempts: 120,
		Interval:    time.Hour,
		Sleep: func(ctx context.Context, d time.Duration) error {
			cancel()
			return ContextSleep(ctx, d)
		},
	}
	_, err := p.PollUntilDone(ctx, "cancel", model.TaskKindTextToVideo)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if q.count() != 1 {
		t.Fatalf("queries = %d", q.count())
	}
}

func TestPollReportsStatusTransitions(t *testing.T) {
	q := &scriptedQuerier{steps: []step{
		{snap: provider.TaskSnapshot{Status: model.TaskStatusSubmitted}},
		processing(),
		processing(),
		succeed("https://cdn/video.mp4"),
	}}
	var seen []model.TaskStatus
	p := newPoller(q, 10, &sleepRecorder{})
	p.OnStatus = func(task *model.GenerationTask, attempt int) {
		seen = append(seen, task.Status)
	}
	if _, err := p.PollUntilDone(context.Background(), "obs", model.TaskKindTextToVideo); err != nil {
		t.Fatalf("PollUntilDone: %v", err)
	}
	want := []model.TaskStatus{model.TaskStatusProcessing, model.TaskStatusSucceeded}
	if len(seen) != len(want) {
		t.Fatalf("transitions = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("transitions = %v, want %v", seen, want)
		}
	}
}

func TestNewFromConfig(t *testing.T) {
	p := New(&scriptedQuerier{}, config.PollerConfig{MaxAttempts: 3, IntervalMs: 250, TransportRetries: 1}, nil)
	if p.MaxAttempts != 3 || p.Interval != 250*time.Millisecond || p.TransportRetries != 1 {
		t.Fatalf("poller = %+v", p)
	}
}
