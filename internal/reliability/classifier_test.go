package reliability

import (
	"context"
	"errors"
	"testing"
	"time"

	openai "github.com/sashabaranov/go-openai"
)

func TestRetryableHTTPStatus(t *testing.T) {
	cases := []struct {
		code int
		want bool
	}{
		{200, false},
		{400, false},
		{429, true},
		{500, true},
		{503, true},
	}
	for _, tc := range cases {
		got := RetryableHTTPStatus(tc.code)
		if got != tc.want {
			t.Fatalf("RetryableHTTPStatus(%d) = %v, want %v", tc.code, got, tc.want)
		}
	}
}

func TestRetryableError(t *testing.T) {
	if RetryableError(nil) {
		t.Fatalf("nil error classified retryable")
	}
	if RetryableError(context.Canceled) {
		t.Fatalf("context.Canceled classified retryable")
	}
	if !RetryableError(&openai.APIError{HTTPStatusCode: 429}) {
		t.Fatalf("rate limit not classified retryable")
	}
	if RetryableError(&openai.APIError{HTTPStatusCode: 401}) {
		t.Fatalf("auth failure classified retryable")
	}
	if RetryableError(errors.New("boom")) {
		t.Fatalf("plain error classified retryable")
	}
}

func TestBackoffCap(t *testing.T) {
	base := 100 * time.Millisecond
	capDur := 700 * time.Millisecond
	if got := Backoff(0, base, capDur); got != base {
		t.Fatalf("attempt 0 = %v, want %v", got, base)
	}
	if got := Backoff(10, base, capDur); got != capDur {
		t.Fatalf("attempt 10 = %v, want %v", got, capDur)
	}
}

func TestRetryStopsOnPermanentError(t *testing.T) {
	calls := 0
	permanent := &openai.APIError{HTTPStatusCode: 401}
	err := Retry(context.Background(), 5, time.Millisecond, time.Millisecond, func() error {
		calls++
		return permanent
	})
	if !errors.Is(err, permanent) {
		t.Fatalf("Retry() error = %v, want %v", err, permanent)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestRetryRecoversFromTransientError(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), 3, time.Millisecond, time.Millisecond, func() error {
		calls++
		if calls < 3 {
			return &openai.APIError{HTTPStatusCode: 503}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Retry() error = %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}
