package bot

import (
	"context"
	"fmt"

	tele "gopkg.in/telebot.v3"
)

type messageSender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// ChannelSender delivers dispatcher messages to Telegram chats.
type ChannelSender struct {
	sender messageSender
}

func NewChannelSender(sender messageSender) *ChannelSender {
	return &ChannelSender{sender: sender}
}

func (s *ChannelSender) Send(ctx context.Context, channelID int64, message string) error {
	if s == nil || s.sender == nil {
		return fmt.Errorf("telegram sender not configured")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.sender.Send(&tele.Chat{ID: channelID}, message)
	return err
}
