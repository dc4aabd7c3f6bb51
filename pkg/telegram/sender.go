package telegram

import (
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// messageAPI Sender 依赖的 Bot API 子集
type messageAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Sender 消息发送器
// 先按 MarkdownV2 发送，解析失败时退回纯文本
type Sender struct {
	bot    messageAPI
	logger *slog.Logger
}

// NewSender 创建消息发送器
func NewSender(bot messageAPI, logger *slog.Logger) *Sender {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sender{
		bot:    bot,
		logger: logger,
	}
}

// SendReply 回复指定消息，返回发送的消息 ID
func (s *Sender) SendReply(chatID int64, replyToMsgID int, text string) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyToMsgID
	return s.send(msg)
}

// SendMessage 发送消息（不 reply）
func (s *Sender) SendMessage(chatID int64, text string) (int, error) {
	return s.send(tgbotapi.NewMessage(chatID, text))
}

func (s *Sender) send(msg tgbotapi.MessageConfig) (int, error) {
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	sent, err := s.bot.Send(msg)
	if err != nil {
		s.logger.Warn("failed to send markdown message, retrying as plain text",
			"chat_id", msg.ChatID,
			"error", err,
		)
		msg.ParseMode = ""
		sent, err = s.bot.Send(msg)
		if err != nil {
			s.logger.Error("failed to send message",
				"chat_id", msg.ChatID,
				"error", err,
			)
			return 0, fmt.Errorf("failed to send message: %w", err)
		}
	}

	s.logger.Debug("message sent",
		"chat_id", msg.ChatID,
		"message_id", sent.MessageID,
	)
	return sent.MessageID, nil
}
