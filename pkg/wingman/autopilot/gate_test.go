package autopilot

import (
	"sync"
	"testing"
	"time"
)

func TestGateArmDisarm(t *testing.T) {
	g := NewGate(time.Second)

	if g.Armed("chat1") {
		t.Error("conversations start disarmed")
	}

	g.Arm("chat1")
	if !g.Armed("chat1") {
		t.Error("chat1 should be armed")
	}
	if g.Armed("chat2") {
		t.Error("arming is per conversation")
	}

	g.Disarm("chat1")
	if g.Armed("chat1") {
		t.Error("chat1 should be disarmed")
	}
}

func TestGateSingleAcquisition(t *testing.T) {
	g := NewGate(time.Second)

	if !g.TryAcquire() {
		t.Fatal("first acquire should succeed")
	}
	if g.TryAcquire() {
		t.Error("second acquire should fail while busy")
	}
	if !g.Busy() {
		t.Error("gate should report busy")
	}

	g.Release()
	if g.Busy() {
		t.Error("gate should be idle after release")
	}
	if !g.TryAcquire() {
		t.Error("acquire should succeed after release")
	}
}

func TestGateConcurrentAcquire(t *testing.T) {
	g := NewGate(time.Second)

	const goroutines = 50
	var wg sync.WaitGroup
	wins := make(chan int, goroutines)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if g.TryAcquire() {
				wins <- n
			}
		}(i)
	}
	wg.Wait()
	close(wins)

	var count int
	for range wins {
		count++
	}
	if count != 1 {
		t.Errorf("exactly one goroutine must win the gate, got %d", count)
	}
}
