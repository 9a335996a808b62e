package notificator

import (
	"context"
	"fmt"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/lockguard/lockguard/pkg/logger"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*tgModels.Message, error)
}

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
	client messageSender

	chatID string
}

// NewTelegramNotificator connects a bot posting every notification to chatID.
func NewTelegramNotificator(logger *logger.Logger, token, chatID string) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		chatID: chatID,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
		bot.WithSkipGetMe(),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b
	provider.client = b

	return provider, nil
}

// Start polls for bot updates until ctx is done.
func (t *TelegramNotificator) Start(ctx context.Context) {
	t.bot.Start(ctx)
}

func (t *TelegramNotificator) Send(ctx context.Context, message string) error {
	return t.send(ctx, t.chatID, message)
}

func (t *TelegramNotificator) send(ctx context.Context, chatID, message string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   message,
	}
	if _, err := t.client.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// handler answers /start in the configured chat. Other chats only get their id
// logged, so operators can find it without the bot telling strangers anything.
func (t *TelegramNotificator) handler(ctx context.Context, _ *bot.Bot, update *tgModels.Update) {
	if update.Message == nil {
		return
	}
	if update.Message.Text != "/start" {
		return
	}
	chatID := fmt.Sprint(update.Message.Chat.ID)
	if chatID != t.chatID {
		t.logger.Infow("Ignoring /start from unconfigured chat", "chat_id", chatID)
		return
	}
	if err := t.send(ctx, chatID, "Certification notifications are delivered to this chat"); err != nil {
		t.logger.Errorw("Failed to answer /start", "chat_id", chatID, "error", err)
	}
}
