package modules

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestSupervisorGivesUpAfterRetryBudget(t *testing.T) {
	var updates []State
	sup := &Supervisor{
		Kind:       "test",
		Emit:       func(u Update) { updates = append(updates, u.State) },
		Base:       time.Millisecond,
		Cap:        4 * time.Millisecond,
		MaxRetries: 3,
	}
	attempts := 0
	err := sup.Run(context.Background(), func(ctx context.Context, ready func()) error {
		attempts++
		return errors.New("refused")
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if attempts != 3 {
		t.Errorf("attempts = %d, want 3", attempts)
	}
	if updates[0] != StateStarting {
		t.Errorf("first state = %v, want starting", updates[0])
	}
	if last := updates[len(updates)-1]; last != StateUnavailable {
		t.Errorf("last state = %v, want unavailable", last)
	}
}

func TestSupervisorResetsAfterReady(t *testing.T) {
	sup := &Supervisor{
		Kind:       "test",
		Base:       time.Millisecond,
		MaxRetries: 2,
	}
	attempts := 0
	err := sup.Run(context.Background(), func(ctx context.Context, ready func()) error {
		attempts++
		if attempts <= 4 {
			// Each session connects, so the failure streak never
			// builds up despite four straight drops.
			ready()
			return errors.New("dropped")
		}
		return fmt.Errorf("refused %d", attempts)
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	// 4 connected sessions, then MaxRetries failed ones.
	if attempts != 6 {
		t.Errorf("attempts = %d, want 6", attempts)
	}
}

func TestSupervisorStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	sup := &Supervisor{Kind: "test", Base: time.Millisecond}
	runs := 0
	done := make(chan error, 1)
	go func() {
		done <- sup.Run(ctx, func(ctx context.Context, ready func()) error {
			runs++
			if runs == 2 {
				cancel()
			}
			return errors.New("dropped")
		})
	}()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel = %v, want nil", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("supervisor did not stop on cancel")
	}
}

func TestSupervisorTreatsUnavailableAsTerminal(t *testing.T) {
	sup := &Supervisor{Kind: "test", Base: time.Millisecond, MaxRetries: 100}
	attempts := 0
	err := sup.Run(context.Background(), func(ctx context.Context, ready func()) error {
		attempts++
		return fmt.Errorf("%w: daemon not on the bus", ErrUnavailable)
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1", attempts)
	}
}
