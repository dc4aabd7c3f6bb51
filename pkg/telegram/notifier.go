package telegram

import (
	"context"

	"github.com/KodaTao/taskter/pkg/scheduler"
)

// Notifier 把调度触发摘要发送到固定会话，实现 scheduler.Notifier
type Notifier struct {
	sender *Sender
	chatID int64
}

var _ scheduler.Notifier = (*Notifier)(nil)

// NewNotifier 创建通知器
func NewNotifier(sender *Sender, chatID int64) *Notifier {
	return &Notifier{sender: sender, chatID: chatID}
}

// Notify 发送一次触发的摘要，失败只记录日志
func (n *Notifier) Notify(ctx context.Context, report scheduler.FiringReport) {
	if n == nil || n.sender == nil || n.chatID == 0 {
		return
	}
	_, _ = n.sender.SendMessage(n.chatID, report.Summary())
}
