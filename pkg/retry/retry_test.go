package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

var errTransient = errors.New("transient")
var errFatal = errors.New("fatal")

func TestDo_SucceedsAfterRetries(t *testing.T) {
	calls := 0
	retries := 0

	result, err := Do(context.Background(), Config{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		OnRetry:     func(int, error, time.Duration) { retries++ },
	}, func(ctx context.Context, attempt int) (string, error) {
		calls++
		if attempt < 3 {
			return "", errTransient
		}
		return "ok", nil
	})

	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if result != "ok" {
		t.Errorf("Expected result ok, got %q", result)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
	if retries != 2 {
		t.Errorf("Expected 2 retry callbacks, got %d", retries)
	}
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), Config{MaxAttempts: 3}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errTransient
	})

	if !errors.Is(err, ErrAttemptsExhausted) {
		t.Errorf("Expected ErrAttemptsExhausted, got %v", err)
	}
	if !errors.Is(err, errTransient) {
		t.Errorf("Expected last error to be wrapped, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestDo_StopsOnNonRetryableError(t *testing.T) {
	calls := 0

	_, err := Do(context.Background(), Config{
		MaxAttempts: 3,
		RetryIf:     func(err error) bool { return errors.Is(err, errTransient) },
	}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		return 0, errFatal
	})

	if !errors.Is(err, errFatal) {
		t.Errorf("Expected fatal error, got %v", err)
	}
	if errors.Is(err, ErrAttemptsExhausted) {
		t.Error("Non-retryable error must not be reported as exhausted")
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}

func TestDo_ContextCancelledDuringDelay(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	_, err := Do(ctx, Config{MaxAttempts: 3, Delay: time.Hour}, func(ctx context.Context, attempt int) (int, error) {
		calls++
		cancel()
		return 0, errTransient
	})

	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
}
