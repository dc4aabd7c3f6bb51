package builtin

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"reflect"
	"strconv"
	"strings"
)

// ErrEmailConfigNotFound 邮件配置文件不存在
var ErrEmailConfigNotFound = errors.New("Email configuration not found")

// EmailConfig 邮件配置，对应 email_config.json
type EmailConfig struct {
	SMTPServer string `json:"smtp_server"`
	SMTPPort   int    `json:"smtp_port"`
	Username   string `json:"username"`
	Password   string `json:"password"`
}

// LoadEmailConfig 读取邮件配置
func LoadEmailConfig(path string) (EmailConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return EmailConfig{}, ErrEmailConfigNotFound
		}
		return EmailConfig{}, err
	}
	var cfg EmailConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return EmailConfig{}, fmt.Errorf("invalid email config: %w", err)
	}
	return cfg, nil
}

// Mailer 邮件发送接口
type Mailer interface {
	Send(ctx context.Context, cfg EmailConfig, to, subject, body string) error
}

// SMTPMailer 基于 net/smtp 的发送器
// 465 端口使用隐式 TLS，其余端口在服务器支持时升级 STARTTLS
type SMTPMailer struct{}

func (SMTPMailer) Send(ctx context.Context, cfg EmailConfig, to, subject, body string) error {
	port := cfg.SMTPPort
	if port == 0 {
		port = 465
	}
	addr := net.JoinHostPort(cfg.SMTPServer, strconv.Itoa(port))
	tlsConfig := &tls.Config{ServerName: cfg.SMTPServer}

	var conn net.Conn
	var err error
	dialer := &net.Dialer{}
	if port == 465 {
		conn, err = (&tls.Dialer{NetDialer: dialer, Config: tlsConfig}).DialContext(ctx, "tcp", addr)
	} else {
		conn, err = dialer.DialContext(ctx, "tcp", addr)
	}
	if err != nil {
		return err
	}

	client, err := smtp.NewClient(conn, cfg.SMTPServer)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if port != 465 {
		if ok, _ := client.Extension("STARTTLS"); ok {
			if err := client.StartTLS(tlsConfig); err != nil {
				return err
			}
		}
	}
	if cfg.Username != "" {
		auth := smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.SMTPServer)
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(cfg.Username); err != nil {
		return err
	}
	if err := client.Rcpt(to); err != nil {
		return err
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(buildMessage(cfg.Username, to, subject, body)); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}

func buildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

// SendEmailParams send_email 参数
type SendEmailParams struct {
	To      string `json:"to" jsonschema:"description=Recipient email address"`
	Subject string `json:"subject" jsonschema:"description=Email subject"`
	Body    string `json:"body" jsonschema:"description=Plain text body"`
}

// SendEmailFunction 发送邮件
// 发送失败不视为工具错误，而是把失败原因返回给模型
type SendEmailFunction struct {
	configPath string
	mailer     Mailer
}

// NewSendEmailFunction 创建 SendEmailFunction
func NewSendEmailFunction(deps Deps) *SendEmailFunction {
	mailer := deps.Mailer
	if mailer == nil {
		mailer = SMTPMailer{}
	}
	return &SendEmailFunction{configPath: deps.Paths.EmailConfig, mailer: mailer}
}

func (f *SendEmailFunction) Name() string {
	return "send_email"
}

func (f *SendEmailFunction) Description() string {
	return "Sends an email to a recipient with a subject and body."
}

func (f *SendEmailFunction) ParamsType() reflect.Type {
	return reflect.TypeOf(SendEmailParams{})
}

func (f *SendEmailFunction) Execute(ctx context.Context, params any) (string, error) {
	p := params.(SendEmailParams)

	cfg, err := LoadEmailConfig(f.configPath)
	if err == nil && p.To == "" {
		err = errors.New("missing recipient address")
	}
	if err == nil {
		err = f.mailer.Send(ctx, cfg, p.To, p.Subject, p.Body)
	}
	if err != nil {
		return fmt.Sprintf("Failed to send email: %v", err), nil
	}
	return fmt.Sprintf("Email sent to %s with subject '%s' and body '%s'", p.To, p.Subject, p.Body), nil
}
