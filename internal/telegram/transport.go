package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Transport отправляет готовые уведомления в Telegram. Используется
// сервисом доставки, который работает отдельным процессом от бота.
type Transport struct {
	api *tgbotapi.BotAPI
}

// NewTransport создает транспорт поверх клиента Telegram API.
func NewTransport(api *tgbotapi.BotAPI) *Transport {
	return &Transport{api: api}
}

// Send отправляет одно сообщение. Silent убирает звук у получателя,
// им помечаются массовые оповещения о событиях зала.
func (t *Transport) Send(chatID int64, text string, silent bool) error {
	const op = "telegram.Transport.Send"

	msg := tgbotapi.NewMessage(chatID, text)
	msg.DisableNotification = silent
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
