package tgbotapisfm

import tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

// HandlerFunc обработчик обновления в рамках состояния.
type HandlerFunc func(bot *Bot, update tgbotapi.Update) error

// Handler обертка над HandlerFunc, чтобы состояния могли хранить необязательные обработчики по указателю.
type Handler struct {
	Handle HandlerFunc
}

// State описывает, как бот реагирует на сообщения пользователя, пока тот находится в состоянии.
type State struct {
	// Глобальное состояние проверяется для любого пользователя до его собственного
	Global bool
	// Вызывается при переходе в состояние через EnterState
	AtEntranceFunc *Handler
	// Вызывается, если ни один обработчик не подошел
	CatchAllFunc *Handler
	// Текст сообщения в нижнем регистре -> обработчик
	MessageHandlers map[string]Handler
	// Данные callback -> обработчик
	CallbackHandlers map[string]Handler
	// Префикс данных callback -> обработчик. Выбирается самый длинный подходящий префикс
	CallbackPrefixHandlers map[string]Handler
}
