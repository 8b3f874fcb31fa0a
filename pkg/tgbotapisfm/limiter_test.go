package tgbotapisfm

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_PerChatBurst(t *testing.T) {
	l := NewLimiter()
	ctx := context.Background()
	for i := 0; i < perChatBurst; i++ {
		require.NoError(t, l.Wait(ctx, 1))
	}

	// лимит первого чата исчерпан, второй чат не ждет
	short, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	assert.Error(t, l.Wait(short, 1))
	assert.NoError(t, l.Wait(ctx, 2))
}

func TestValidationError(t *testing.T) {
	err := NewValidationError(ErrNegativeExpiration, -time.Second)
	assert.Equal(t, "expiration must not be negative: -1s", err.Error())
	assert.ErrorIs(t, err, ErrNegativeExpiration)
}
