package tesseract

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecognizeBoundedReturnsResult(t *testing.T) {
	text, err := recognizeBounded(context.Background(), func() (string, error) {
		return "page text", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "page text", text)
}

func TestRecognizeBoundedAbandonsStuckCall(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	release := make(chan struct{})
	defer close(release)

	start := time.Now()
	_, err := recognizeBounded(ctx, func() (string, error) {
		<-release
		return "too late", nil
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 5*time.Second, "timeout must not wait for the call to finish")
}

func TestRecognizeBoundedCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	release := make(chan struct{})
	defer close(release)

	_, err := recognizeBounded(ctx, func() (string, error) {
		<-release
		return "", nil
	})
	assert.ErrorIs(t, err, context.Canceled)
}
