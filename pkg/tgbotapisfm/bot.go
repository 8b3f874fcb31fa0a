package tgbotapisfm

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"car_intake/pkg/zaplogger"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
)

// Config структура для конфигурации бота
type Config struct {
	Token           string           // Токен бота
	Expiration      time.Duration    // Время хранения состояний пользователя
	CleanupInterval time.Duration    // Интервал очистки кеша
	States          map[string]State // Карта состояний
	DefaultState    string           // Состояние для пользователя без состояния, пустое - игнорировать
}

// Bot структура для бота
type Bot struct {
	BotAPI        *tgbotapi.BotAPI // API бота. Экспортируется для доступа к нему из вне
	expiration    time.Duration    // Время хранения состояний пользователя
	limiter       *Limiter         // Лимитер для ограничения количества запросов к API
	cache         *gocache.Cache   // Кеш для хранения состояний пользователей
	logger        *zap.Logger
	states        map[string]State // Состояния пользователя
	globalStates  []*State         // Состояния, в которые может перейти пользователь из любого другого
	defaultState  string
	updateHandler HandlerFunc  // Обработчик, который будет вызываться при получении любого обновления
	running       atomic.Bool  // Бот запущен
	statesMu      sync.RWMutex // Мьютекс для безопасного обновления состояний

	IgnoreList []int64 // Список ID пользователей, которые будут игнорироваться
}

// NewBot конструктор нового бота
// logger - необязательный параметр, если не передан, то будет создан новый логгер
func NewBot(config Config, ignoreList []int64, logger ...*zap.Logger) (*Bot, error) {
	if err := validateConfig(config); err != nil {
		return nil, err
	}

	botAPI, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, NewValidationError(ErrTelegramInit, err)
	}

	var zapLogger *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		zapLogger = logger[0]
	} else {
		zapLogger, err = zaplogger.New(zaplogger.DefaultLevel)
		if err != nil {
			return nil, fmt.Errorf("failed to create logger: %w", err)
		}
	}
	return newBot(botAPI, config, ignoreList, zapLogger), nil
}

func validateConfig(config Config) error {
	if config.Expiration < 0 {
		return NewValidationError(ErrNegativeExpiration, config.Expiration)
	}
	if config.CleanupInterval < 0 {
		return NewValidationError(ErrNegativeCleanup, config.CleanupInterval)
	}
	if config.Token == "" {
		return ErrInvalidToken
	}
	if config.DefaultState != "" {
		if _, ok := config.States[config.DefaultState]; !ok {
			return NewValidationError(ErrStateHandlerNotFound, config.DefaultState)
		}
	}
	return nil
}

func newBot(botAPI *tgbotapi.BotAPI, config Config, ignoreList []int64, logger *zap.Logger) *Bot {
	b := &Bot{
		BotAPI:       botAPI,
		limiter:      NewLimiter(),
		cache:        gocache.New(config.Expiration, config.CleanupInterval),
		expiration:   config.Expiration,
		defaultState: config.DefaultState,
		logger:       logger,
		IgnoreList:   ignoreList,
	}
	b.setStates(config.States)
	return b
}

// SetLogger заменяет текущий логгер
// Должен вызываться до Run()
func (b *Bot) SetLogger(logger *zap.Logger) error {
	if b.running.Load() {
		return NewValidationError(ErrBotStarted, "logger")
	}
	b.logger = logger
	return nil
}

// SetUpdateHandler устанавливает обработчик обновлений
// Должен вызываться до Run()
func (b *Bot) SetUpdateHandler(handler HandlerFunc) error {
	if b.running.Load() {
		return NewValidationError(ErrBotStarted, "update handler")
	}
	b.updateHandler = handler
	return nil
}

// Run получает обновления long polling'ом и обрабатывает их до отмены ctx.
// Если Telegram закрыл канал обновлений, возвращается ErrUpdatesClosed.
func (b *Bot) Run(ctx context.Context, offset, timeout int) error {
	if !b.running.CompareAndSwap(false, true) {
		return ErrBotStarted
	}
	defer b.running.Store(false)

	u := tgbotapi.NewUpdate(offset)
	u.Timeout = timeout
	b.logger.Info("Запуск обработки обновлений")
	return b.serve(ctx, b.BotAPI.GetUpdatesChan(u), b.BotAPI.StopReceivingUpdates)
}

func (b *Bot) serve(ctx context.Context, updates tgbotapi.UpdatesChannel, stopReceiving func()) error {
	for {
		select {
		case <-ctx.Done():
			stopReceiving()
			b.logger.Info("Остановка обработки обновлений")
			return nil
		case update, ok := <-updates:
			if !ok {
				b.logger.Warn("Канал обновлений закрыт")
				return ErrUpdatesClosed
			}
			if err := b.HandleUpdate(update); err != nil {
				return err
			}
		}
	}
}

// HandleUpdate обрабатывает одно обновление: общий обработчик, глобальные состояния, состояние пользователя.
// Ошибку возвращает только общий обработчик; ошибки состояний логгируются.
func (b *Bot) HandleUpdate(update tgbotapi.Update) error {
	if b.updateHandler != nil {
		if err := b.updateHandler(b, update); err != nil {
			b.logger.Error("Ошибка в обработчике обновлений", zap.Error(err))
			return fmt.Errorf("update handler error: %w", err)
		}
	}

	from := update.SentFrom()
	if from == nil {
		return nil
	}
	if slices.Contains(b.IgnoreList, from.ID) {
		return nil
	}
	if chat := update.FromChat(); chat != nil && slices.Contains(b.IgnoreList, chat.ID) {
		return nil
	}

	if b.HandleGlobalStates(update) {
		return nil
	}

	stateName, err := b.GetUserState(from.ID)
	if err != nil {
		if b.defaultState == "" {
			b.logger.Debug("user has no state", zap.Int64("user_id", from.ID))
			return nil
		}
		stateName = b.defaultState
	}

	b.statesMu.RLock()
	state, ok := b.states[stateName]
	b.statesMu.RUnlock()
	if !ok {
		b.logger.Warn("state not found in states map, resetting user", zap.String("state", stateName))
		b.ClearUserState(from.ID)
		return nil
	}

	if _, err := b.SelectHandler(update, &state); err != nil {
		b.logger.Error("failed to handle user state", zap.Error(err), zap.String("state", stateName))
	}
	return nil
}

func userKey(userID int64) string {
	return strconv.FormatInt(userID, 10)
}

// GetUserState возвращает название состояния, в котором находится пользователь
func (b *Bot) GetUserState(userID int64) (string, error) {
	raw, ok := b.cache.Get(userKey(userID))
	if !ok {
		return "", ErrStateNotFound
	}
	state, ok := raw.(string)
	if !ok {
		return "", ErrInvalidStateType
	}
	return state, nil
}

// SetUserState меняет состояние пользователя
func (b *Bot) SetUserState(userID int64, state string) error {
	b.statesMu.RLock()
	_, ok := b.states[state]
	b.statesMu.RUnlock()
	if !ok {
		return NewValidationError(ErrStateHandlerNotFound, state)
	}
	b.cache.Set(userKey(userID), state, b.expiration)
	return nil
}

// ClearUserState сбрасывает состояние пользователя
func (b *Bot) ClearUserState(userID int64) {
	b.cache.Delete(userKey(userID))
}

// EnterState меняет состояние пользователя и вызывает AtEntranceFunc нового состояния.
func (b *Bot) EnterState(userID int64, state string, update tgbotapi.Update) error {
	if err := b.SetUserState(userID, state); err != nil {
		return err
	}
	b.statesMu.RLock()
	next := b.states[state]
	b.statesMu.RUnlock()
	if next.AtEntranceFunc == nil {
		return nil
	}
	return next.AtEntranceFunc.Handle(b, update)
}

// HandleGlobalStates проверяет подходит ли действие пользователя под
// глобальные состояния и если подходит, то выполняет его.
// Возвращает true, если обработчик нашелся.
func (b *Bot) HandleGlobalStates(update tgbotapi.Update) bool {
	b.statesMu.RLock()
	globals := b.globalStates
	b.statesMu.RUnlock()

	for _, state := range globals {
		// CatchAll глобального состояния перехватил бы все сообщения
		probe := *state
		probe.CatchAllFunc = nil
		found, err := b.SelectHandler(update, &probe)
		if err != nil {
			b.logger.Error("failed to handle global state", zap.Error(err))
		}
		if found {
			return true
		}
	}
	return false
}

// SelectHandler выбирает обработчик состояния по типу обновления.
// Возвращает true, если нашелся именованный обработчик.
func (b *Bot) SelectHandler(update tgbotapi.Update, state *State) (bool, error) {
	switch {
	case update.Message != nil:
		return b.handleMessage(state, update)
	case update.CallbackQuery != nil:
		return b.handleCallback(state, update)
	}
	return false, nil
}

// handleMessage ищет команду в map'е и выполняет ее
func (b *Bot) handleMessage(state *State, update tgbotapi.Update) (bool, error) {
	text := strings.ToLower(strings.TrimSpace(update.Message.Text))
	fields := []zap.Field{
		zap.String("command", update.Message.Text),
		zap.Int64("chat_id", update.Message.Chat.ID),
	}

	if action, ok := state.MessageHandlers[text]; ok {
		if err := action.Handle(b, update); err != nil {
			b.logger.Error("failed to handle command", append(fields, zap.Error(err))...)
			return true, err
		}
		b.logger.Debug("command handled", fields...)
		return true, nil
	}

	if state.CatchAllFunc != nil {
		if err := state.CatchAllFunc.Handle(b, update); err != nil {
			b.logger.Error("failed to handle message", append(fields, zap.Error(err))...)
			return false, err
		}
		return false, nil
	}
	b.logger.Debug("command not found", fields...)
	return false, nil
}

// handleCallback ищет callback в map'е: сначала точное совпадение, затем по префиксу
func (b *Bot) handleCallback(state *State, update tgbotapi.Update) (bool, error) {
	data := update.CallbackQuery.Data
	fields := []zap.Field{
		zap.String("callback", data),
		zap.Int64("user_id", update.CallbackQuery.From.ID),
	}

	action, ok := state.CallbackHandlers[data]
	if !ok {
		action, ok = matchPrefix(state.CallbackPrefixHandlers, data)
	}
	if ok {
		if err := action.Handle(b, update); err != nil {
			b.logger.Error("failed to handle callback", append(fields, zap.Error(err))...)
			return true, err
		}
		b.logger.Debug("callback handled", fields...)
		return true, nil
	}

	if state.CatchAllFunc != nil {
		if err := state.CatchAllFunc.Handle(b, update); err != nil {
			b.logger.Error("failed to handle callback", append(fields, zap.Error(err))...)
			return false, err
		}
		return false, nil
	}
	b.logger.Debug("callback not found", fields...)
	return false, nil
}

func matchPrefix(handlers map[string]Handler, data string) (Handler, bool) {
	best := ""
	found := false
	for prefix := range handlers {
		if strings.HasPrefix(data, prefix) && (!found || len(prefix) > len(best)) {
			best = prefix
			found = true
		}
	}
	return handlers[best], found
}

// ReplaceStates безопасно заменяет все состояния бота на новые
func (b *Bot) ReplaceStates(newStates map[string]State) {
	b.setStates(newStates)
	b.logger.Info("Состояния бота успешно обновлены")
}

func (b *Bot) setStates(states map[string]State) {
	if states == nil {
		states = make(map[string]State)
	}
	globals := make([]*State, 0)
	for _, state := range states {
		if state.Global {
			globals = append(globals, &state)
		}
	}

	b.statesMu.Lock()
	defer b.statesMu.Unlock()
	b.states = states
	b.globalStates = globals
}
