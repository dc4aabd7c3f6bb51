// Package telegram 提供 Telegram 通知和命令 Bot
package telegram

import "github.com/KodaTao/taskter/pkg/config"

// Config Telegram Bot 配置
type Config struct {
	Enabled bool
	Token   string
	// ChatID 调度触发摘要发送到的会话，0 表示不发送
	ChatID int64
}

// FromConfig 从应用配置转换
func FromConfig(c config.TelegramConfig) Config {
	return Config{Enabled: c.Enabled, Token: c.Token, ChatID: c.ChatID}
}

// Validate 验证配置
func (c Config) Validate() error {
	if c.Enabled && c.Token == "" {
		return ErrTokenRequired
	}
	return nil
}
