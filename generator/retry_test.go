package generator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"testing"
	"time"

	"novel2video/models"
)

func newTestRetrier() (*Retrier, *[]time.Duration) {
	r := NewRetrier(models.RetryConfig{BaseDelaySeconds: 1, MaxDelaySeconds: 30})
	var slept []time.Duration
	r.sleep = func(_ context.Context, d time.Duration) error {
		slept = append(slept, d)
		return nil
	}
	return r, &slept
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"deadline", context.DeadlineExceeded, ClassTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), ClassTimeout},
		{"http 429", &ProviderError{StatusCode: 429}, ClassRateLimited},
		{"http 408", &ProviderError{StatusCode: 408}, ClassTimeout},
		{"http 503", &ProviderError{StatusCode: 503}, ClassServerError},
		{"http 400", &ProviderError{StatusCode: 400}, ClassOther},
		{"dns failure", &net.DNSError{Err: "no such host"}, ClassNetworkError},
		{"message timeout", errors.New("request timed out"), ClassTimeout},
		{"message rate limit", errors.New("quota exceeded"), ClassRateLimited},
		{"message server", errors.New("got 502 bad gateway"), ClassServerError},
		{"message network", errors.New("connection refused"), ClassNetworkError},
		{"opaque", errors.New("something odd"), ClassOther},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestDoSucceedsAfterRetries(t *testing.T) {
	r, slept := newTestRetrier()

	calls := 0
	err := r.Do(context.Background(), "test", func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("request timed out")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Do returned %v", err)
	}
	if calls != 3 {
		t.Errorf("made %d calls, want 3", calls)
	}
	if len(*slept) != 2 {
		t.Errorf("slept %d times, want 2", len(*slept))
	}
}

func TestDoExhaustsAttemptBudget(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantCalls int
	}{
		{"server errors stop early", &ProviderError{StatusCode: 500}, 2},
		{"rate limits wait longest", &ProviderError{StatusCode: 429}, 5},
		{"timeouts", context.DeadlineExceeded, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, _ := newTestRetrier()
			calls := 0
			err := r.Do(context.Background(), "test", func(context.Context) error {
				calls++
				return tt.err
			})
			if err == nil {
				t.Fatal("expected the last error back")
			}
			if calls != tt.wantCalls {
				t.Errorf("made %d calls, want %d", calls, tt.wantCalls)
			}
		})
	}
}

func TestDelayGrowthAndCap(t *testing.T) {
	r, _ := newTestRetrier()

	tests := []struct {
		class   ErrorClass
		attempt int
		want    time.Duration
	}{
		{ClassRateLimited, 0, time.Second},
		{ClassRateLimited, 1, 2 * time.Second},
		{ClassRateLimited, 2, 4 * time.Second},
		{ClassTimeout, 1, 1500 * time.Millisecond},
		{ClassServerError, 3, time.Second},
		{ClassRateLimited, 10, 30 * time.Second}, // capped
	}

	for _, tt := range tests {
		if got := r.Delay(tt.class, tt.attempt); got != tt.want {
			t.Errorf("Delay(%s, %d) = %s, want %s", tt.class, tt.attempt, got, tt.want)
		}
	}
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	r, _ := newTestRetrier()

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := r.Do(ctx, "test", func(context.Context) error {
		calls++
		cancel()
		return errors.New("request timed out")
	})
	if err == nil {
		t.Fatal("expected an error")
	}
	if calls != 1 {
		t.Errorf("made %d calls after cancellation, want 1", calls)
	}
}
