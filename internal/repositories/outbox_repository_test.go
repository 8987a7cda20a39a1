package repositories

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetryDelay(t *testing.T) {
	assert.Equal(t, 30*time.Second, RetryDelay(0))
	assert.Equal(t, 30*time.Second, RetryDelay(1))
	assert.Equal(t, time.Minute, RetryDelay(2))
	assert.Equal(t, 4*time.Minute, RetryDelay(4))
	assert.Equal(t, 30*time.Minute, RetryDelay(10))
	assert.Equal(t, 30*time.Minute, RetryDelay(1000))
}
