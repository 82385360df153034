package telegram

import (
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/yayitinyu/RelayCat/internal/infra/httpclient"
)

// Bot is the outbound transport to the Telegram Bot API. Every call is
// bounded by the configured HTTP timeout.
type Bot struct {
	api *tgbotapi.BotAPI
}

func NewBot(token string, timeout time.Duration) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, fmt.Errorf("telegram bot token is empty")
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	api, err := tgbotapi.NewBotAPIWithClient(strings.TrimSpace(token), tgbotapi.APIEndpoint, httpclient.New(timeout))
	if err != nil {
		return nil, fmt.Errorf("create telegram bot api: %w", err)
	}

	return &Bot{api: api}, nil
}

func (b *Bot) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if b == nil || b.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("telegram bot is not initialized")
	}
	return b.api.Send(c)
}

// Username reports the account name resolved during API handshake; used to
// label verification-link messages when config leaves the username empty.
func (b *Bot) Username() string {
	if b == nil || b.api == nil {
		return ""
	}
	return b.api.Self.UserName
}
