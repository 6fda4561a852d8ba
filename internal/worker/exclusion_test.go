package worker

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestExclusionToken_SerializesHolders(t *testing.T) {
	var tok ExclusionToken
	require.NoError(t, tok.Acquire(context.Background()))

	acquired := make(chan struct{})
	go func() {
		require.NoError(t, tok.Acquire(context.Background()))
		close(acquired)
		tok.Release()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquirer should have blocked while the first held the token")
	case <-time.After(50 * time.Millisecond):
	}

	tok.Release()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquirer never got the token after release")
	}
}

func TestExclusionToken_AcquireRespectsContextCancellation(t *testing.T) {
	var tok ExclusionToken
	require.NoError(t, tok.Acquire(context.Background()))
	defer tok.Release()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := tok.Acquire(ctx)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPauseToken_SetClear(t *testing.T) {
	var p PauseToken
	require.False(t, p.IsSet())
	p.Pause()
	require.True(t, p.IsSet())
	p.Resume()
	require.False(t, p.IsSet())
}
