package tgbotapisfm

import (
	"context"
	"errors"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type recorder struct {
	calls []string
}

func (r *recorder) handler(name string) Handler {
	return Handler{Handle: func(bot *Bot, update tgbotapi.Update) error {
		r.calls = append(r.calls, name)
		return nil
	}}
}

func (r *recorder) ptr(name string) *Handler {
	h := r.handler(name)
	return &h
}

func message(userID int64, text string) tgbotapi.Update {
	return tgbotapi.Update{Message: &tgbotapi.Message{
		From: &tgbotapi.User{ID: userID},
		Chat: &tgbotapi.Chat{ID: userID},
		Text: text,
	}}
}

func callback(userID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: userID},
		Message: &tgbotapi.Message{Chat: &tgbotapi.Chat{ID: userID}},
		Data:    data,
	}}
}

func newTestBot(t *testing.T, r *recorder, defaultState string) *Bot {
	t.Helper()
	states := map[string]State{
		"global": {
			Global:          true,
			MessageHandlers: map[string]Handler{"/start": r.handler("start")},
		},
		"name": {
			AtEntranceFunc:  r.ptr("name:enter"),
			CatchAllFunc:    r.ptr("name:any"),
			MessageHandlers: map[string]Handler{"continue": r.handler("name:continue")},
		},
		"kind": {
			CallbackHandlers: map[string]Handler{"kind:cancel": r.handler("kind:cancel")},
			CallbackPrefixHandlers: map[string]Handler{
				"kind:":     r.handler("kind:any"),
				"kind:opt:": r.handler("kind:opt"),
			},
		},
	}
	return newBot(nil, Config{States: states, Expiration: time.Hour, DefaultState: defaultState}, []int64{666}, zaptest.NewLogger(t))
}

func TestUserState(t *testing.T) {
	b := newTestBot(t, &recorder{}, "")

	_, err := b.GetUserState(1)
	require.ErrorIs(t, err, ErrStateNotFound)

	require.NoError(t, b.SetUserState(1, "name"))
	state, err := b.GetUserState(1)
	require.NoError(t, err)
	assert.Equal(t, "name", state)

	err = b.SetUserState(1, "missing")
	require.ErrorIs(t, err, ErrStateHandlerNotFound)
	var vErr *ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "missing", vErr.Value)

	b.cache.Set(userKey(2), 42, time.Hour)
	_, err = b.GetUserState(2)
	assert.ErrorIs(t, err, ErrInvalidStateType)

	b.ClearUserState(1)
	_, err = b.GetUserState(1)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestHandleUpdate_Dispatch(t *testing.T) {
	r := &recorder{}
	b := newTestBot(t, r, "")

	// без состояния сообщение игнорируется, глобальная команда работает
	require.NoError(t, b.HandleUpdate(message(1, "hello")))
	require.NoError(t, b.HandleUpdate(message(1, " /START ")))

	require.NoError(t, b.EnterState(1, "name", message(1, "")))
	require.NoError(t, b.HandleUpdate(message(1, "Continue")))
	require.NoError(t, b.HandleUpdate(message(1, "Fahad")))

	require.NoError(t, b.SetUserState(1, "kind"))
	require.NoError(t, b.HandleUpdate(callback(1, "kind:cancel")))
	require.NoError(t, b.HandleUpdate(callback(1, "kind:opt:polish")))
	require.NoError(t, b.HandleUpdate(callback(1, "kind:other")))

	// игнорируемый пользователь
	require.NoError(t, b.HandleUpdate(message(666, "/start")))

	assert.Equal(t, []string{
		"start",
		"name:enter", "name:continue", "name:any",
		"kind:cancel", "kind:opt", "kind:any",
	}, r.calls)
}

func TestHandleUpdate_DefaultStateAndUpdateHandler(t *testing.T) {
	r := &recorder{}
	b := newTestBot(t, r, "name")

	require.NoError(t, b.HandleUpdate(message(1, "anything")))
	assert.Equal(t, []string{"name:any"}, r.calls)

	boom := errors.New("boom")
	require.NoError(t, b.SetUpdateHandler(func(*Bot, tgbotapi.Update) error { return boom }))
	assert.ErrorIs(t, b.HandleUpdate(message(1, "anything")), boom)
}

func TestHandleUpdate_UnknownStateResetsUser(t *testing.T) {
	b := newTestBot(t, &recorder{}, "")
	b.cache.Set(userKey(1), "removed", time.Hour)

	require.NoError(t, b.HandleUpdate(message(1, "hi")))
	_, err := b.GetUserState(1)
	assert.ErrorIs(t, err, ErrStateNotFound)
}

func TestServe_StopsWhenUpdatesClosed(t *testing.T) {
	r := &recorder{}
	b := newTestBot(t, r, "")
	updates := make(chan tgbotapi.Update, 1)
	updates <- message(1, "/start")
	close(updates)

	err := b.serve(context.Background(), updates, func() { t.Error("stopReceiving не должен вызываться") })
	require.ErrorIs(t, err, ErrUpdatesClosed)
	assert.Equal(t, []string{"start"}, r.calls)
}

func TestServe_StopsOnContextCancel(t *testing.T) {
	b := newTestBot(t, &recorder{}, "")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stopped := false
	err := b.serve(ctx, make(chan tgbotapi.Update), func() { stopped = true })
	require.NoError(t, err)
	assert.True(t, stopped)
}

func TestSetters_RejectWhenRunning(t *testing.T) {
	b := newTestBot(t, &recorder{}, "")
	b.running.Store(true)
	assert.ErrorIs(t, b.SetLogger(zaptest.NewLogger(t)), ErrBotStarted)
	assert.ErrorIs(t, b.SetUpdateHandler(nil), ErrBotStarted)
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"negative expiration", Config{Token: "t", Expiration: -1}, ErrNegativeExpiration},
		{"negative cleanup", Config{Token: "t", CleanupInterval: -1}, ErrNegativeCleanup},
		{"empty token", Config{}, ErrInvalidToken},
		{"unknown default", Config{Token: "t", DefaultState: "x"}, ErrStateHandlerNotFound},
		{"ok", Config{Token: "t", States: map[string]State{"x": {}}, DefaultState: "x"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateConfig(tt.cfg)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestChatAndUserID(t *testing.T) {
	assert.Equal(t, int64(5), ChatID(callback(5, "x")))
	assert.Equal(t, int64(5), UserID(message(5, "x")))
	assert.Zero(t, ChatID(tgbotapi.Update{}))
	assert.Zero(t, UserID(tgbotapi.Update{}))
}
