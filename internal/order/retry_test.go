package order

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/m3rciful/autoorder/internal/notify"
)

type scriptedOutcome struct {
	res Result
	err error
}

type scriptedExec struct {
	calls    int
	outcomes []scriptedOutcome
}

func (s *scriptedExec) Execute(context.Context, []string) (Result, error) {
	if s.calls >= len(s.outcomes) {
		return Result{}, errors.New("no scripted outcome left")
	}
	out := s.outcomes[s.calls]
	s.calls++
	return out.res, out.err
}

func TestSupervisorRecoversAfterCrashes(t *testing.T) {
	exec := &scriptedExec{outcomes: []scriptedOutcome{
		{err: errors.New("connection reset")},
		{err: errors.New("flood wait")},
		{res: Result{OK: true, Verified: true}},
	}}
	sink := &sinkRecorder{}
	clock := clockAt(9)
	sup := NewSupervisor(exec, sink, 3, 5*time.Second, clock)

	res := sup.Run(context.Background(), testMeals)
	if !res.OK || !res.Verified {
		t.Fatalf("expected the third attempt to succeed verified, got %+v", res)
	}
	if exec.calls != 3 {
		t.Fatalf("expected 3 attempts, got %d", exec.calls)
	}
	if got := sink.count(notify.KindCrash); got != 2 {
		t.Fatalf("expected 2 crash notifications, got %d (%v)", got, sink.kinds)
	}
	if len(sink.kinds) != 2 {
		t.Fatalf("expected no other notifications, got %v", sink.kinds)
	}
	if len(clock.slept) != 2 || clock.slept[0] != 5*time.Second || clock.slept[1] != 5*time.Second {
		t.Fatalf("expected two 5s inter-attempt delays, got %v", clock.slept)
	}
}

func TestSupervisorExhaustsAttempts(t *testing.T) {
	exec := &scriptedExec{outcomes: []scriptedOutcome{
		{res: Result{Reason: ReasonBotDown}},
		{res: Result{Reason: ReasonBotDown}},
		{res: Result{Reason: ReasonBotDown}},
	}}
	sink := &sinkRecorder{}
	clock := clockAt(9)
	sup := NewSupervisor(exec, sink, 3, 5*time.Second, clock)

	res := sup.Run(context.Background(), testMeals)
	if res.OK {
		t.Fatal("expected overall failure")
	}
	if res.Reason != ReasonBotDown {
		t.Fatalf("expected the last attempt reason to surface, got %q", res.Reason)
	}
	if got := sink.count(notify.KindFailure); got != 1 {
		t.Fatalf("expected one final failure notification, got %d (%v)", got, sink.kinds)
	}
	if got := sink.count(notify.KindCrash); got != 0 {
		t.Fatalf("expected no crash notifications, got %d", got)
	}
	// No delay after the final attempt.
	if len(clock.slept) != 2 {
		t.Fatalf("expected two delays, got %v", clock.slept)
	}
}

func TestSupervisorStopsOnFirstSuccess(t *testing.T) {
	exec := &scriptedExec{outcomes: []scriptedOutcome{
		{res: Result{OK: true}},
	}}
	sink := &sinkRecorder{}
	clock := clockAt(9)
	sup := NewSupervisor(exec, sink, 3, 5*time.Second, clock)

	if res := sup.Run(context.Background(), testMeals); !res.OK {
		t.Fatalf("expected success, got %+v", res)
	}
	if exec.calls != 1 {
		t.Fatalf("expected a single attempt, got %d", exec.calls)
	}
	if len(clock.slept) != 0 {
		t.Fatalf("expected no delays, got %v", clock.slept)
	}
	if len(sink.kinds) != 0 {
		t.Fatalf("expected no supervisor notifications, got %v", sink.kinds)
	}
}

func TestGateRejectsConcurrentRuns(t *testing.T) {
	var g Gate
	if !g.TryAcquire() {
		t.Fatal("expected the free gate to be acquirable")
	}
	if g.TryAcquire() {
		t.Fatal("expected the held gate to reject a second caller")
	}
	g.Release()
	if !g.TryAcquire() {
		t.Fatal("expected the released gate to be acquirable again")
	}
	g.Release()
}
