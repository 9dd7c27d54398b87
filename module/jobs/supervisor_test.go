package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type stubLocker struct {
	acquireOK  bool
	acquireErr error
	refreshOK  bool
	refreshErr error

	released int32
}

func (l *stubLocker) Acquire(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return l.acquireOK, l.acquireErr
}

func (l *stubLocker) Refresh(_ context.Context, _, _ string, _ time.Duration) (bool, error) {
	return l.refreshOK, l.refreshErr
}

func (l *stubLocker) Release(_ context.Context, _, _ string) error {
	atomic.AddInt32(&l.released, 1)
	return nil
}

func TestSupervisorBecomesRunner(t *testing.T) {
	locker := &stubLocker{acquireOK: true, refreshOK: true}
	s := NewJobSupervisor(locker, nil)
	defer s.Stop(context.Background())

	if !s.Start(context.Background()) {
		t.Fatal("Start must succeed when the lock is free")
	}
	if !s.IsRunner() {
		t.Fatal("IsRunner must report true after a successful Start")
	}
}

func TestSupervisorYieldsWhenLockHeld(t *testing.T) {
	var ran int32
	jobs := []Job{{
		Name:     "stats",
		Every:    time.Minute,
		RunAfter: time.Millisecond,
		Fn:       func(context.Context) { atomic.AddInt32(&ran, 1) },
	}}
	s := NewJobSupervisor(&stubLocker{acquireOK: false}, jobs)

	if s.Start(context.Background()) {
		t.Fatal("Start must fail when another instance holds the lock")
	}
	if s.IsRunner() {
		t.Fatal("a non-runner must not claim to run jobs")
	}

	time.Sleep(20 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("a non-runner must schedule no jobs at all")
	}
}

func TestSupervisorTreatsLockStoreOutageAsNotRunner(t *testing.T) {
	s := NewJobSupervisor(&stubLocker{acquireErr: errors.New("connection refused")}, nil)
	if s.Start(context.Background()) {
		t.Fatal("an unreachable lock store must not elect this instance")
	}
}

func TestOneShotRunsAfterStartup(t *testing.T) {
	var ran int32
	jobs := []Job{{
		Name:     "warm-up",
		Every:    time.Hour,
		RunAfter: 5 * time.Millisecond,
		Fn:       func(context.Context) { atomic.AddInt32(&ran, 1) },
	}}
	locker := &stubLocker{acquireOK: true, refreshOK: true}
	s := NewJobSupervisor(locker, jobs)
	defer s.Stop(context.Background())

	if !s.Start(context.Background()) {
		t.Fatal("Start failed")
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&ran) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("one-shot never fired")
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func TestDemoteCancelsPendingWork(t *testing.T) {
	var ran int32
	jobs := []Job{{
		Name:     "stats",
		Every:    time.Hour,
		RunAfter: 50 * time.Millisecond,
		Fn:       func(context.Context) { atomic.AddInt32(&ran, 1) },
	}}
	locker := &stubLocker{acquireOK: true, refreshOK: true}
	s := NewJobSupervisor(locker, jobs)

	if !s.Start(context.Background()) {
		t.Fatal("Start failed")
	}
	if !s.demote() {
		t.Fatal("demote must report that the instance was running")
	}
	if s.IsRunner() {
		t.Fatal("IsRunner must be false after demotion")
	}

	time.Sleep(120 * time.Millisecond)
	if atomic.LoadInt32(&ran) != 0 {
		t.Fatal("demotion must cancel pending one-shots before clearing the flag")
	}
}

func TestStopReleasesLock(t *testing.T) {
	locker := &stubLocker{acquireOK: true, refreshOK: true}
	s := NewJobSupervisor(locker, nil)

	if !s.Start(context.Background()) {
		t.Fatal("Start failed")
	}
	s.Stop(context.Background())

	if atomic.LoadInt32(&locker.released) != 1 {
		t.Fatal("Stop must release the runner lock")
	}

	// idempotent: a second Stop must not release again
	s.Stop(context.Background())
	if atomic.LoadInt32(&locker.released) != 1 {
		t.Fatal("Stop must be idempotent")
	}
}

func TestStopBeforeStartIsSafe(t *testing.T) {
	locker := &stubLocker{}
	s := NewJobSupervisor(locker, nil)
	s.Stop(context.Background())
	if atomic.LoadInt32(&locker.released) != 0 {
		t.Fatal("Stop before Start must not touch the lock")
	}
}
