package pipeline

import (
	"context"
	"testing"
	"time"

	"github.com/soar/padview/internal/gamepad"
	"github.com/soar/padview/internal/mapping"
)

type fakeEngine struct {
	calls int
}

func (e *fakeEngine) ProcessFrame(s gamepad.Snapshot) (mapping.Batch, bool) {
	e.calls++
	var b mapping.Batch
	for i, g := range s {
		if g != nil {
			b[i] = &mapping.Change{ID: mapping.ID{GamepadID: g.ID}}
		}
	}
	return b, b.Occupied()
}

type fakeRenderer struct {
	submitted []mapping.Batch
	ticks     int
}

func (r *fakeRenderer) Submit(b mapping.Batch) bool {
	r.submitted = append(r.submitted, b)
	return true
}

func (r *fakeRenderer) Tick(time.Time) {
	r.ticks++
}

type fakeListener struct {
	batches int
}

func (l *fakeListener) PublishChanges(mapping.Batch) {
	l.batches++
}

func newTestLoop() (*Loop, *gamepad.Mailbox, *fakeEngine, *fakeRenderer, *fakeListener) {
	box := gamepad.NewMailbox()
	e, r, cl := &fakeEngine{}, &fakeRenderer{}, &fakeListener{}
	return NewLoop(box, e, r, cl, 60), box, e, r, cl
}

func TestTickProcessesLatestSnapshotOnly(t *testing.T) {
	l, box, e, r, cl := newTestLoop()

	box.Put(gamepad.Snapshot{{ID: "first"}})
	box.Put(gamepad.Snapshot{{ID: "second"}})
	l.Tick()

	if e.calls != 1 {
		t.Errorf("expected one processed snapshot, got %d", e.calls)
	}
	if len(r.submitted) != 1 || r.submitted[0][0].ID.GamepadID != "second" {
		t.Errorf("expected the newest snapshot to be rendered, got %+v", r.submitted)
	}
	if cl.batches != 1 {
		t.Errorf("expected one published batch, got %d", cl.batches)
	}

	l.Tick()
	if e.calls != 1 || r.ticks != 2 {
		t.Errorf("expected a render-only tick without input, got %d calls and %d ticks", e.calls, r.ticks)
	}
}

func TestTickEmptySnapshots(t *testing.T) {
	l, box, _, r, cl := newTestLoop()

	box.Put(gamepad.Snapshot{})
	l.Tick()
	if len(r.submitted) != 0 || cl.batches != 0 {
		t.Errorf("expected empty snapshots not to be published, got %d/%d", len(r.submitted), cl.batches)
	}

	box.Put(gamepad.Snapshot{{ID: "pad"}})
	l.Tick()
	box.Put(gamepad.Snapshot{})
	l.Tick()
	box.Put(gamepad.Snapshot{})
	l.Tick()

	if len(r.submitted) != 2 {
		t.Fatalf("expected the disconnect to reach the renderer once, got %d batches", len(r.submitted))
	}
	if r.submitted[1].Occupied() {
		t.Error("expected the second batch to be empty")
	}
	if cl.batches != 1 {
		t.Errorf("expected listeners to see only occupied batches, got %d", cl.batches)
	}
}

func TestDoRunsOnLoop(t *testing.T) {
	l, _, _, _, _ := newTestLoop()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	ran := false
	if err := l.Do(context.Background(), func() { ran = true }); err != nil {
		t.Fatal(err)
	}
	if !ran {
		t.Error("expected the command to have run when Do returned")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected clean shutdown, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("loop did not stop")
	}

	ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	for i := 0; i < cap(l.commands); i++ {
		l.commands <- func() {}
	}
	if err := l.Do(ctx2, func() {}); err == nil {
		t.Error("expected Do to give up once the loop is gone")
	}
}
