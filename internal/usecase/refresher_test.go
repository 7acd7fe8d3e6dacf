package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"pulse-voice/internal/core"
)

type fakeRefreshable struct {
	topic  string
	err    error
	topics []string
}

func (f *fakeRefreshable) Snapshot() core.Snapshot { return core.Snapshot{Topic: f.topic} }

func (f *fakeRefreshable) Refresh(_ context.Context, topic string) error {
	f.topics = append(f.topics, topic)
	return f.err
}

func TestRunOnceReloadsCurrentTopic(t *testing.T) {
	ctrl := &fakeRefreshable{topic: "science"}
	r := NewRefresher(ctrl, nil, time.Minute, time.Second)
	fixed := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return fixed }

	if err := r.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(ctrl.topics) != 1 || ctrl.topics[0] != "science" {
		t.Fatalf("refreshed %v", ctrl.topics)
	}
	st := r.Status()
	if st.Runs != 1 || st.LastTopic != "science" || !st.LastRun.Equal(fixed) || st.LastError != "" {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunOnceSkipsWhilePlaying(t *testing.T) {
	ctrl := &fakeRefreshable{topic: "science"}
	playing := true
	r := NewRefresher(ctrl, func() bool { return playing }, time.Minute, 0)

	if err := r.RunOnce(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want ErrBusy", err)
	}
	if len(ctrl.topics) != 0 {
		t.Fatal("refreshed over playing audio")
	}
	playing = false
	_ = r.RunOnce(context.Background())
	if st := r.Status(); st.Skipped != 1 || st.Runs != 1 {
		t.Fatalf("status = %+v", st)
	}
}

func TestRunOnceRecordsFailures(t *testing.T) {
	ctrl := &fakeRefreshable{topic: "science", err: errors.New("connection refused")}
	r := NewRefresher(ctrl, nil, time.Minute, 0)
	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if st := r.Status(); st.LastError != "connection refused" {
		t.Fatalf("status = %+v", st)
	}

	ctrl.err = nil
	_ = r.RunOnce(context.Background())
	if st := r.Status(); st.LastError != "" || st.Runs != 2 {
		t.Fatalf("error not cleared: %+v", st)
	}
}

func TestRunOnceWithoutTopic(t *testing.T) {
	r := NewRefresher(&fakeRefreshable{}, nil, time.Minute, 0)
	if err := r.RunOnce(context.Background()); err == nil {
		t.Fatal("expected error before any topic is loaded")
	}
}

func TestLoopTicks(t *testing.T) {
	ctrl := &fakeRefreshable{topic: "world"}
	done := make(chan struct{})
	r := NewRefresher(ctrl, func() bool {
		select {
		case <-done:
		default:
			close(done)
		}
		return true
	}, 10*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	r.Start(ctx)
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("loop never ticked")
	}
}

func TestDisabledRefresherDoesNothing(t *testing.T) {
	ctrl := &fakeRefreshable{topic: "world"}
	r := NewRefresher(ctrl, nil, 0, 0)
	r.Start(context.Background())
	if st := r.Status(); st.Runs != 0 || st.Interval != 0 {
		t.Fatalf("status = %+v", st)
	}
}
