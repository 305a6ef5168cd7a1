package notify

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"estatecrm/internal/metrics"
)

type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type TelegramDispatcher struct {
	bot telegramSender
}

func NewTelegramDispatcher(botToken string) (*TelegramDispatcher, error) {
	bot, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	return &TelegramDispatcher{bot: bot}, nil
}

func (t *TelegramDispatcher) Dispatch(_ context.Context, msg Message) error {
	chatID := msg.Recipient.TelegramChatID
	if t == nil || t.bot == nil || chatID == 0 {
		metrics.RecordNotification("telegram", "skipped")
		return ErrNoAddress
	}

	out := tgbotapi.NewMessage(chatID, telegramText(msg))
	out.ParseMode = tgbotapi.ModeHTML
	out.DisableWebPagePreview = true

	if _, err := t.bot.Send(out); err != nil {
		metrics.RecordNotification("telegram", "failed")
		log.Printf("[notify][tg] kind=%s chatID=%d err=%v", msg.Kind, chatID, err)
		return fmt.Errorf("send %s telegram: %w", msg.Kind, err)
	}
	metrics.RecordNotification("telegram", "sent")
	return nil
}

func telegramText(msg Message) string {
	return "<b>" + html.EscapeString(msg.Subject) + "</b>\n\n" + html.EscapeString(msg.Text)
}
