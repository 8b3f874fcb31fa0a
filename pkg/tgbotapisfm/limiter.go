package tgbotapisfm

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Ограничения Telegram: около 30 сообщений в секунду на бота и 1 в секунду на чат.
const (
	globalRate   = 30
	perChatEvery = time.Second
	perChatBurst = 3
)

// Limiter ограничивает частоту исходящих сообщений глобально и по каждому чату.
type Limiter struct {
	global *rate.Limiter
	mu     sync.Mutex
	chats  map[int64]*rate.Limiter
}

func NewLimiter() *Limiter {
	return &Limiter{
		global: rate.NewLimiter(rate.Limit(globalRate), globalRate),
		chats:  make(map[int64]*rate.Limiter),
	}
}

func (l *Limiter) chat(chatID int64) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.chats[chatID]
	if !ok {
		lim = rate.NewLimiter(rate.Every(perChatEvery), perChatBurst)
		l.chats[chatID] = lim
	}
	return lim
}

// Wait блокируется, пока в чат chatID можно отправить сообщение.
func (l *Limiter) Wait(ctx context.Context, chatID int64) error {
	if err := l.chat(chatID).Wait(ctx); err != nil {
		return err
	}
	return l.global.Wait(ctx)
}
