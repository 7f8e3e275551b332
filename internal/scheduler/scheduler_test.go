package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestTriggerIsSingleFlight(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	var runs atomic.Int32

	s, err := New(Options{}, func(context.Context) error {
		runs.Add(1)
		close(started)
		<-release
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	done := make(chan bool)
	go func() { done <- s.Trigger(context.Background()) }()
	<-started

	if s.Trigger(context.Background()) {
		t.Fatal("expected overlapping trigger to be skipped")
	}
	close(release)
	if !<-done {
		t.Fatal("expected first trigger to run")
	}
	if runs.Load() != 1 {
		t.Fatalf("expected one run, got %d", runs.Load())
	}
}

func TestTriggerReportsJobErrors(t *testing.T) {
	s, err := New(Options{}, func(context.Context) error { return errors.New("boom") }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if !s.Trigger(context.Background()) {
		t.Fatal("expected failing job to still count as a run")
	}
	if !s.Trigger(context.Background()) {
		t.Fatal("expected scheduler to release the run slot after a failure")
	}
}

func TestStartRunsOnStart(t *testing.T) {
	ran := make(chan struct{}, 1)
	s, err := New(Options{RunOnStart: true, Timezone: "UTC"}, func(context.Context) error {
		ran <- struct{}{}
		return nil
	}, zap.NewNop())
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer s.Stop()

	select {
	case <-ran:
	case <-time.After(5 * time.Second):
		t.Fatal("expected immediate run")
	}

	next := s.Next()
	if next.IsZero() || (next.Hour() != 8 && next.Hour() != 20) || next.Minute() != 0 {
		t.Fatalf("unexpected next run: %v", next)
	}
}

func TestInvalidConfiguration(t *testing.T) {
	if _, err := New(Options{Timezone: "Mars/Olympus"}, nil, nil); err == nil {
		t.Fatal("expected timezone error")
	}

	s, err := New(Options{Spec: "not a spec"}, func(context.Context) error { return nil }, nil)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := s.Start(context.Background()); err == nil {
		t.Fatal("expected spec error")
	}
}
