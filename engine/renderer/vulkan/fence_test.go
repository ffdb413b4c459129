package vulkan

import (
	"testing"

	"github.com/cockroachdb/errors"

	"github.com/spaghettifunk/tessera/engine/core"
)

type fakeCompletion struct {
	done  bool
	waits int
	err   error
}

func (f *fakeCompletion) wait() error {
	f.waits++
	if f.err != nil {
		return f.err
	}
	f.done = true
	return nil
}

func (f *fakeCompletion) ready() (bool, error) { return f.done, f.err }

func newTestLedger(initial uint64) (*signalLedger, *[]completion) {
	released := &[]completion{}
	return newSignalLedger(initial, func(c completion) { *released = append(*released, c) }), released
}

func TestSignalLedgerWait(t *testing.T) {
	l, released := newTestLedger(0)
	first, second := &fakeCompletion{}, &fakeCompletion{}
	l.add(2, first)
	l.add(4, second)

	if err := l.waitFor(0); err != nil {
		t.Fatal(err)
	}
	if first.waits != 0 {
		t.Fatalf("waiting for the initial value blocked on a fence")
	}

	// 3 is reached once the submission signalling 4 completes
	if err := l.waitFor(3); err != nil {
		t.Fatal(err)
	}
	if first.waits != 1 || second.waits != 1 {
		t.Fatalf("fence waits: have %d/%d, want 1/1", first.waits, second.waits)
	}
	if have, _ := l.poll(); have != 4 {
		t.Fatalf("counter: have %d, want 4", have)
	}
	if len(*released) != 2 {
		t.Fatalf("released fences: have %d, want 2", len(*released))
	}

	if err := l.waitFor(4); err != nil {
		t.Fatal(err)
	}
	if second.waits != 1 {
		t.Fatalf("a completed value waited again")
	}
}

func TestSignalLedgerStopsAtTarget(t *testing.T) {
	l, released := newTestLedger(0)
	first, second := &fakeCompletion{}, &fakeCompletion{}
	l.add(2, first)
	l.add(4, second)

	if err := l.waitFor(2); err != nil {
		t.Fatal(err)
	}
	if second.waits != 0 {
		t.Fatalf("waited past the requested value")
	}
	if len(*released) != 1 || (*released)[0] != first {
		t.Fatalf("released: have %v, want only the first fence", *released)
	}
}

func TestSignalLedgerNeverSubmitted(t *testing.T) {
	l, _ := newTestLedger(6)
	if err := l.waitFor(6); err != nil {
		t.Fatal(err)
	}
	err := l.waitFor(8)
	if err == nil {
		t.Fatal("waiting for an unsubmitted value returned nil")
	}
	if core.KindOf(err) != core.KindSync {
		t.Fatalf("have %v, want a sync error", err)
	}
}

func TestSignalLedgerWaitError(t *testing.T) {
	l, released := newTestLedger(0)
	lost := errors.New("device lost")
	first, second := &fakeCompletion{}, &fakeCompletion{err: lost}
	l.add(2, first)
	l.add(4, second)

	if err := l.waitFor(4); !errors.Is(err, lost) {
		t.Fatalf("have %v, want %v", err, lost)
	}
	// the first submission still counts as done
	if have, _ := l.poll(); have != 2 {
		t.Fatalf("counter: have %d, want 2", have)
	}
	if len(*released) != 1 {
		t.Fatalf("released fences: have %d, want 1", len(*released))
	}
}

func TestSignalLedgerPoll(t *testing.T) {
	l, released := newTestLedger(0)
	first, second, third := &fakeCompletion{done: true}, &fakeCompletion{}, &fakeCompletion{done: true}
	l.add(2, first)
	l.add(4, second)
	l.add(6, third)

	have, err := l.poll()
	if err != nil {
		t.Fatal(err)
	}
	if have != 2 {
		t.Fatalf("counter: have %d, want 2", have)
	}
	if first.waits+second.waits+third.waits != 0 {
		t.Fatalf("poll blocked on a fence")
	}

	second.done = true
	if have, _ = l.poll(); have != 6 {
		t.Fatalf("counter: have %d, want 6", have)
	}
	if len(*released) != 3 {
		t.Fatalf("released fences: have %d, want 3", len(*released))
	}
}

func TestSignalLedgerDrain(t *testing.T) {
	l, released := newTestLedger(0)
	l.add(2, &fakeCompletion{})
	l.add(4, &fakeCompletion{})
	l.drain()
	if len(*released) != 2 {
		t.Fatalf("released fences: have %d, want 2", len(*released))
	}
	if len(l.pending) != 0 {
		t.Fatalf("pending after drain: %d", len(l.pending))
	}
}
