package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Bot Telegram Bot 封装
type Bot struct {
	api      *tgbotapi.BotAPI
	config   Config
	sender   *Sender
	commands Commands
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewBot 创建 Telegram Bot
func NewBot(config Config, commands Commands, logger *slog.Logger) (*Bot, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	api, err := tgbotapi.NewBotAPI(config.Token)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bot := &Bot{
		api:      api,
		config:   config,
		commands: commands,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	bot.sender = NewSender(api, logger)

	logger.Info("telegram bot created",
		"username", api.Self.UserName,
	)
	return bot, nil
}

// SetCommands 替换命令处理器，需在 Start 之前调用
func (b *Bot) SetCommands(commands Commands) {
	b.commands = commands
}

// Notifier 返回发送到配置会话的通知器
func (b *Bot) Notifier() *Notifier {
	return NewNotifier(b.sender, b.config.ChatID)
}

// Start 启动 Bot，开始接收命令
func (b *Bot) Start() {
	b.logger.Info("starting telegram bot")

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	go func() {
		for {
			select {
			case <-b.ctx.Done():
				b.logger.Info("telegram bot stopped")
				return
			case update, ok := <-updates:
				if !ok {
					return
				}
				if update.Message == nil || !update.Message.IsCommand() {
					continue
				}
				if update.Message.Chat.IsGroup() || update.Message.Chat.IsChannel() {
					// 群聊必须@才生效
					if !strings.Contains(update.Message.Text, "@"+b.api.Self.UserName) {
						continue
					}
				}
				go b.handleMessage(update.Message)
			}
		}
	}()
}

// Stop 停止 Bot
func (b *Bot) Stop() {
	b.logger.Info("stopping telegram bot")
	b.cancel()
	b.api.StopReceivingUpdates()
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	b.logger.Info("received command",
		"chat_id", msg.Chat.ID,
		"command", msg.Command(),
	)

	reply := b.commands.Handle(b.ctx, msg.Command(), msg.CommandArguments())
	if _, err := b.sender.SendReply(msg.Chat.ID, msg.MessageID, truncateText(reply, 4000)); err != nil {
		b.logger.Error("failed to send reply",
			"chat_id", msg.Chat.ID,
			"error", err,
		)
	}
}

// truncateText 截断文本，Telegram 单条消息有长度上限
func truncateText(text string, maxLen int) string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return text
	}
	return string(runes[:maxLen]) + "..."
}
