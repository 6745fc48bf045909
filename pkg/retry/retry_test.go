package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

var errBoom = errors.New("boom")

func fast() []Option {
	return []Option{WithInitialDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}
}

func TestDo_RetriesRetryableUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return Retryable(errBoom)
		}
		return nil
	}, append(fast(), WithMaxAttempts(5))...)

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	var retries []int
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Retryable(errBoom)
	}, append(fast(), WithMaxAttempts(3), WithOnRetry(func(attempt int, _ error, _ time.Duration) {
		retries = append(retries, attempt)
	}))...)

	assert.ErrorIs(t, err, errBoom)
	assert.False(t, IsRetryable(err))
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retries)
}

func TestDo_PermanentAndUnclassifiedErrorsAreNotRetried(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return Permanent(errBoom)
	}, fast()...)
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)

	calls = 0
	err = Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, fast()...)
	assert.Equal(t, errBoom, err)
	assert.Equal(t, 1, calls)
}

func TestDo_RetryIf(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return errBoom
	}, append(fast(), WithMaxAttempts(4), WithRetryIf(func(err error) bool {
		return errors.Is(err, errBoom)
	}))...)

	assert.Equal(t, errBoom, err)
	assert.Equal(t, 4, calls)
}

func TestDoWithData(t *testing.T) {
	calls := 0
	v, err := DoWithData(context.Background(), func(ctx context.Context) (int, error) {
		calls++
		if calls == 1 {
			return 0, Retryable(errBoom)
		}
		return 42, nil
	}, fast()...)

	assert.NoError(t, err)
	assert.Equal(t, 42, v)
}
