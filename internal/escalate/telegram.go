package escalate

import (
	"context"
	"strconv"

	tele "gopkg.in/telebot.v4"
)

type TelegramConfig struct {
	Token  string
	ChatID int64
}

// TelegramSender delivers escalations to a fixed operator chat. It satisfies
// the Sender contract by reporting its chat as the sole receiver with metric
// zero, so receiver selection degenerates cleanly.
type TelegramSender struct {
	bot  *tele.Bot
	chat int64
}

func NewTelegramSender(cfg TelegramConfig) (*TelegramSender, error) {
	// Send-only: no poller, the bot never consumes updates.
	b, err := tele.NewBot(tele.Settings{Token: cfg.Token})
	if err != nil {
		return nil, err
	}
	return &TelegramSender{bot: b, chat: cfg.ChatID}, nil
}

func (s *TelegramSender) Receivers(ctx context.Context) (map[string]int, error) {
	return map[string]int{strconv.FormatInt(s.chat, 10): 0}, nil
}

func (s *TelegramSender) SendText(ctx context.Context, receiver, text string) error {
	chat, err := chatOf(receiver)
	if err != nil {
		return err
	}
	_, err = s.bot.Send(chat, text, &tele.SendOptions{DisableWebPagePreview: true})
	return err
}

func (s *TelegramSender) SendImageURL(ctx context.Context, receiver, imageURL string) error {
	chat, err := chatOf(receiver)
	if err != nil {
		return err
	}
	_, err = s.bot.Send(chat, &tele.Photo{File: tele.FromURL(imageURL)})
	return err
}

func chatOf(receiver string) (*tele.Chat, error) {
	id, err := strconv.ParseInt(receiver, 10, 64)
	if err != nil {
		return nil, err
	}
	return &tele.Chat{ID: id}, nil
}

var _ Sender = (*TelegramSender)(nil)
