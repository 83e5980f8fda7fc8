package host

import "testing"

func TestSerialQueuePreservesOrder(t *testing.T) {
	q := NewSerialQueue()
	defer q.Stop()

	var got []int
	for i := 0; i < 10; i++ {
		i := i
		q.Post(func() { got = append(got, i) })
	}
	q.Sync()

	for i, v := range got {
		if v != i {
			t.Fatalf("task %d ran out of order: got %d", i, v)
		}
	}
	if len(got) != 10 {
		t.Fatalf("expected 10 tasks, ran %d", len(got))
	}
}

func TestStopDrainsPending(t *testing.T) {
	q := NewSerialQueue()
	ran := 0
	for i := 0; i < 5; i++ {
		q.Post(func() { ran++ })
	}
	q.Stop()
	if ran != 5 {
		t.Fatalf("expected all pending tasks to run, got %d", ran)
	}
}
