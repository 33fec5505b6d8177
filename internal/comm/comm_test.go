package comm

import (
	"sync"
	"testing"
)

func runWorkers(size int, fn func(c Comm)) {
	hub := NewHub(size)
	var wg sync.WaitGroup
	for r := 0; r < size; r++ {
		wg.Add(1)
		go func(rank int) {
			defer wg.Done()
			fn(hub.Comm(rank))
		}(r)
	}
	wg.Wait()
}

func TestAllGather(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	fail := ""
	runWorkers(size, func(c Comm) {
		for round := 0; round < 3; round++ {
			got := c.AllGather(c.Rank()*10 + round)
			for r := 0; r < size; r++ {
				if got[r].(int) != r*10+round {
					mu.Lock()
					fail = "wrong allgather value"
					mu.Unlock()
				}
			}
		}
	})
	if fail != "" {
		t.Fatal(fail)
	}
}

func TestBcast(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	fail := false
	runWorkers(size, func(c Comm) {
		val := c.Bcast(2, c.Rank()) // only rank 2's value matters
		if val.(int) != 2 {
			mu.Lock()
			fail = true
			mu.Unlock()
		}
	})
	if fail {
		t.Fatal("bcast delivered wrong value")
	}
}

func TestAlltoall(t *testing.T) {
	const size = 4
	var mu sync.Mutex
	fail := false
	runWorkers(size, func(c Comm) {
		out := make([]any, size)
		for j := 0; j < size; j++ {
			out[j] = c.Rank()*100 + j
		}
		in := c.Alltoall(out)
		for j := 0; j < size; j++ {
			// Worker j sent j*100 + rank to us.
			if in[j].(int) != j*100+c.Rank() {
				mu.Lock()
				fail = true
				mu.Unlock()
			}
		}
	})
	if fail {
		t.Fatal("alltoall misrouted a payload")
	}
}

func TestSendRecvPairs(t *testing.T) {
	runWorkers(2, func(c Comm) {
		if c.Rank() == 0 {
			c.Send(1, "ping")
			if c.Recv(1).(string) != "pong" {
				t.Error("rank 0 expected pong")
			}
		} else {
			if c.Recv(0).(string) != "ping" {
				t.Error("rank 1 expected ping")
			}
			c.Send(0, "pong")
		}
	})
}
