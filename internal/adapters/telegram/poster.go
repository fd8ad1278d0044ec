package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cyberaware/internal/domain"
	"cyberaware/internal/infra/metrics"
)

// ErrNoChannel возвращается, если канал для публикаций не настроен.
var ErrNoChannel = errors.New("telegram: канал не задан")

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChannelPoster публикует тексты в Telegram-канал от имени бота.
type ChannelPoster struct {
	bot     sender
	channel string
}

var _ domain.SocialPoster = (*ChannelPoster)(nil)

// NewChannelPoster создаёт публикатора. channel задаётся как @username канала.
func NewChannelPoster(bot sender, channel string) *ChannelPoster {
	return &ChannelPoster{bot: bot, channel: channel}
}

// Publish отправляет текст без разметки и превью ссылок.
func (p *ChannelPoster) Publish(ctx context.Context, text string) error {
	if p.channel == "" {
		return ErrNoChannel
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessageToChannel(p.channel, text)
	msg.DisableWebPagePreview = true

	start := time.Now()
	_, err := p.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", p.channel, start, err)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
