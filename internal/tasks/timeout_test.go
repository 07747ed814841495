package tasks

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/spotx/internal/shared"
)

func TestWithTimeout(t *testing.T) {
	t.Run("Completes First", func(t *testing.T) {
		v, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			return 42, nil
		})
		if err != nil || v != 42 {
			t.Errorf("got %v, %v", v, err)
		}
	})

	t.Run("Error Is Returned", func(t *testing.T) {
		boom := errors.New("boom")
		_, err := WithTimeout(context.Background(), time.Second, func(ctx context.Context) (int, error) {
			return 0, boom
		})
		if !errors.Is(err, boom) {
			t.Errorf("expected boom, got %v", err)
		}
	})

	t.Run("Deadline", func(t *testing.T) {
		cause := make(chan error, 1)
		start := time.Now()
		_, err := WithTimeout(context.Background(), 30*time.Millisecond, func(ctx context.Context) (string, error) {
			<-ctx.Done()
			cause <- context.Cause(ctx)
			return "late", nil
		})
		if !errors.Is(err, shared.ErrTimeout) {
			t.Fatalf("expected ErrTimeout, got %v", err)
		}
		if elapsed := time.Since(start); elapsed > time.Second {
			t.Errorf("timeout took too long: %v", elapsed)
		}
		select {
		case c := <-cause:
			if !errors.Is(c, shared.ErrTimeout) {
				t.Errorf("work context cause = %v, want ErrTimeout", c)
			}
		case <-time.After(time.Second):
			t.Fatal("work context was not canceled")
		}
	})

	t.Run("Parent Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		go func() {
			time.Sleep(20 * time.Millisecond)
			cancel()
		}()
		_, err := WithTimeout(ctx, time.Minute, func(ctx context.Context) (int, error) {
			<-ctx.Done()
			return 0, ctx.Err()
		})
		if !errors.Is(err, shared.ErrCanceled) {
			t.Errorf("expected ErrCanceled, got %v", err)
		}
		if errors.Is(err, shared.ErrTimeout) {
			t.Error("parent cancellation is not a timeout")
		}
	})

	t.Run("Already Canceled", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		called := false
		_, err := WithTimeout(ctx, time.Second, func(ctx context.Context) (int, error) {
			called = true
			return 1, nil
		})
		if !errors.Is(err, shared.ErrCanceled) || called {
			t.Errorf("expected ErrCanceled without running, got %v (called=%v)", err, called)
		}
	})

	t.Run("No Deadline", func(t *testing.T) {
		v, err := WithTimeout(context.Background(), 0, func(ctx context.Context) (int, error) {
			time.Sleep(10 * time.Millisecond)
			return 7, nil
		})
		if err != nil || v != 7 {
			t.Errorf("got %v, %v", v, err)
		}
	})
}
