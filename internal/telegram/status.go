package telegram

import (
	"context"
	"errors"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nkorotkov/gym-access-bot/internal/lib/sl"
	"github.com/nkorotkov/gym-access-bot/internal/models"
)

// handlePushStatus заново публикует и закрепляет статусное сообщение
// активной сессии. Нужен, когда закреп в групповом чате снесли руками.
func (b *Bot) handlePushStatus(ctx context.Context, userID int64) {
	st, err := b.sessions.Status(ctx)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			b.send(userID, msgNoActiveSession, nil)
			return
		}
		b.log.Error("failed to load session status", sl.Err(err))
		return
	}

	b.publishStatusPost(ctx, st.Session.ID)
	b.send(userID, "Статусне повідомлення опубліковано заново.", nil)
}

// publishStatusPost публикует и закрепляет статусное сообщение сессии
// в групповом чате. Ошибки Telegram только логируются: сессия уже
// открыта и не должна зависеть от состояния группового чата.
func (b *Bot) publishStatusPost(ctx context.Context, sessionID int64) {
	st, err := b.sessions.Status(ctx)
	if err != nil {
		b.log.Warn("failed to load session status", sl.Err(err))
		return
	}

	groupID := b.cfg.Telegram.GroupChatID
	sent, err := b.api.Send(tgbotapi.NewMessage(groupID, statusPostText(st, b.loc)))
	if err != nil {
		b.log.Warn("failed to publish status post", sl.Err(err))
		return
	}

	if _, err := b.api.Request(tgbotapi.PinChatMessageConfig{
		ChatID:              groupID,
		MessageID:           sent.MessageID,
		DisableNotification: true,
	}); err != nil {
		b.log.Warn("failed to pin status post", sl.Err(err))
	}

	if err := b.sessions.SaveStatusMessage(ctx, sessionID, groupID, int64(sent.MessageID)); err != nil {
		b.log.Warn("failed to save status message", sl.Err(err))
	}
}

// refreshStatusPost перерисовывает закреплённое сообщение после входа,
// выхода или передачи капитанства.
func (b *Bot) refreshStatusPost(ctx context.Context, sessionID int64) {
	st, err := b.sessions.Status(ctx)
	if err != nil {
		return
	}
	s := st.Session
	if s.ID != sessionID || s.StatusChatID == nil || s.StatusMessageID == nil {
		return
	}

	edit := tgbotapi.NewEditMessageText(*s.StatusChatID, int(*s.StatusMessageID), statusPostText(st, b.loc))
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("failed to refresh status post", sl.Err(err))
	}
}

// closeStatusPost переводит статусное сообщение завершённой сессии в
// финальный вид и открепляет его. Снимок session берётся до выхода
// капитана: после завершения активной сессии в хранилище уже нет.
func (b *Bot) closeStatusPost(_ context.Context, session *models.Session) {
	if session == nil || session.StatusChatID == nil || session.StatusMessageID == nil {
		return
	}

	edit := tgbotapi.NewEditMessageText(*session.StatusChatID, int(*session.StatusMessageID),
		closedPostText(time.Now(), b.loc))
	if _, err := b.api.Send(edit); err != nil {
		b.log.Warn("failed to close status post", sl.Err(err))
	}

	if _, err := b.api.Request(tgbotapi.UnpinChatMessageConfig{
		ChatID:    *session.StatusChatID,
		MessageID: int(*session.StatusMessageID),
	}); err != nil {
		b.log.Warn("failed to unpin status post", sl.Err(err))
	}
}
