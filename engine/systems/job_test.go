package systems

import (
	"testing"

	"github.com/cockroachdb/errors"
)

func TestNewJobSystemValidates(t *testing.T) {
	if _, err := NewJobSystem(0, 1); !errors.Is(err, ErrNoWorkers) {
		t.Fatalf("zero workers: have %v", err)
	}
	if _, err := NewJobSystem(1, -1); !errors.Is(err, ErrNegativeChannelSize) {
		t.Fatalf("negative queue: have %v", err)
	}
}

func TestJobCallbacksRunOnUpdate(t *testing.T) {
	f := &fixture{}
	var err error
	if f.jobs, err = NewJobSystem(3, 4); err != nil {
		t.Fatal(err)
	}

	sum := 0
	failures := 0
	for i := 1; i <= 10; i++ {
		i := i
		err := f.jobs.Submit(JobTask{
			Name: "square",
			Run: func() (interface{}, error) {
				if i == 7 {
					return nil, errors.New("unlucky")
				}
				return i * i, nil
			},
			OnComplete: func(result interface{}) { sum += result.(int) },
			OnFailure:  func(error) { failures++ },
		})
		if err != nil {
			t.Fatal(err)
		}
	}
	// nothing is delivered before Update
	if sum != 0 || failures != 0 {
		t.Fatal("callbacks ran off the updating goroutine")
	}
	f.settle(t)

	if want := 385 - 49; sum != want {
		t.Fatalf("sum: have %d, want %d", sum, want)
	}
	if failures != 1 {
		t.Fatalf("failures: have %d, want 1", failures)
	}

	if err := f.jobs.Shutdown(); err != nil {
		t.Fatal(err)
	}
	if err := f.jobs.Shutdown(); err != nil {
		t.Fatalf("second Shutdown: %v", err)
	}
	err = f.jobs.Submit(JobTask{Run: func() (interface{}, error) { return nil, nil }})
	if !errors.Is(err, ErrJobSystemClosed) {
		t.Fatalf("submit after shutdown: have %v", err)
	}
}

func TestSubmitRejectsEmptyJob(t *testing.T) {
	js, err := NewJobSystem(1, 0)
	if err != nil {
		t.Fatal(err)
	}
	defer js.Shutdown()
	if err := js.Submit(JobTask{Name: "empty"}); err == nil {
		t.Fatal("job without Run accepted")
	}
	if js.Pending() != 0 {
		t.Fatalf("pending: have %d, want 0", js.Pending())
	}
}
