package errors

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithDetailDoesNotMutateSentinel(t *testing.T) {
	a := ErrMediaUnavailable.WithDetail("attempts", "url: 404")
	b := ErrMediaUnavailable.WithDetail("message", "reference carries no retrievable field")

	assert.Empty(t, ErrMediaUnavailable.Details)
	assert.Equal(t, map[string]interface{}{"attempts": "url: 404"}, a.Details)
	assert.Equal(t, map[string]interface{}{"message": "reference carries no retrievable field"}, b.Details)

	// Error() reads Details["message"]; it must never pick up text from an
	// unrelated derivation.
	assert.NotContains(t, a.Error(), "retrievable")
}

func TestWithDetailChainsIndependently(t *testing.T) {
	base := ErrOracleUnparsable.WithDetail("response_prefix", "prose")
	branch := base.WithDetail("attempt", 2)

	assert.Equal(t, map[string]interface{}{"response_prefix": "prose"}, base.Details)
	assert.Equal(t, map[string]interface{}{"response_prefix": "prose", "attempt": 2}, branch.Details)
}

func TestConcurrentSentinelDerivation(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				err := ErrMediaUnavailable.WithDetail("attempts", fmt.Sprintf("worker %d try %d", n, j))
				assert.Len(t, err.Details, 1)
				_ = err.Error()
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, ErrMediaUnavailable.Details)
}

func TestWrapPreservesSentinelIdentity(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := Wrap(cause, ErrOracleTransport)

	assert.True(t, errors.Is(wrapped, ErrOracleTransport))
	assert.Equal(t, cause, errors.Unwrap(wrapped))
	assert.True(t, IsOracleError(wrapped))
}

func TestIsRetryableClassification(t *testing.T) {
	assert.False(t, ErrValidation.IsRetryable())
	assert.False(t, ErrUnauthorized.IsRetryable())
	assert.False(t, ErrNoSuchPayee.IsRetryable())
	assert.False(t, ErrOracleUnparsable.IsRetryable())
	assert.True(t, ErrOracleTransport.IsRetryable())
	assert.True(t, ErrPersistence.IsRetryable())
}
