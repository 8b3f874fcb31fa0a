package tgbotapisfm

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// SendMessage отправляет сообщение с учетом лимитов
func (b *Bot) SendMessage(msg tgbotapi.MessageConfig) (tgbotapi.Message, error) {
	if err := b.limiter.Wait(context.Background(), msg.ChatID); err != nil {
		return tgbotapi.Message{}, err
	}
	return b.BotAPI.Send(msg)
}

// SendText короткая форма SendMessage для сообщения без клавиатуры
func (b *Bot) SendText(chatID int64, text string) error {
	_, err := b.SendMessage(tgbotapi.NewMessage(chatID, text))
	return err
}

// AnswerCallback убирает индикатор загрузки с inline-кнопки
func (b *Bot) AnswerCallback(query *tgbotapi.CallbackQuery, text string) error {
	if query == nil {
		return nil
	}
	_, err := b.BotAPI.Request(tgbotapi.NewCallback(query.ID, text))
	return err
}

// ChatID чат, из которого пришло обновление, или 0
func ChatID(update tgbotapi.Update) int64 {
	if chat := update.FromChat(); chat != nil {
		return chat.ID
	}
	return 0
}

// UserID отправитель обновления или 0
func UserID(update tgbotapi.Update) int64 {
	if user := update.SentFrom(); user != nil {
		return user.ID
	}
	return 0
}
