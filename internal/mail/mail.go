// Package mail はパスワードリセットリンクのメール送信を提供します。
package mail

import (
	"context"
	"fmt"
	"log/slog"

	gomail "github.com/wneessen/go-mail"
)

// Notifier はリセットリンクの通知手段を抽象化します。
type Notifier interface {
	SendPasswordReset(ctx context.Context, toEmail, resetToken string) error
}

// SMTPConfig はSMTP経由の送信に必要な設定です。
type SMTPConfig struct {
	Host        string
	Port        int
	User        string
	Password    string
	From        string
	FrontendURL string
}

// SMTPNotifier はSTARTTLS付きSMTPでリセットメールを送信します。
type SMTPNotifier struct {
	cfg    SMTPConfig
	logger *slog.Logger
}

// NewSMTPNotifier はSMTP通知を作成します。
func NewSMTPNotifier(cfg SMTPConfig, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{cfg: cfg, logger: logger}
}

// SendPasswordReset はリセットリンクを記載したメールを送信します。
// テキストとHTMLの両方のパートを含みます。
func (n *SMTPNotifier) SendPasswordReset(ctx context.Context, toEmail, resetToken string) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", n.cfg.FrontendURL, resetToken)

	msg := gomail.NewMsg()
	if err := msg.From(n.cfg.From); err != nil {
		return fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(toEmail); err != nil {
		return fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject("Reset Your Password - askPDF")
	msg.SetBodyString(gomail.TypeTextPlain, textBody(resetLink))
	msg.AddAlternativeString(gomail.TypeTextHTML, htmlBody(resetLink))

	client, err := gomail.NewClient(n.cfg.Host,
		gomail.WithPort(n.cfg.Port),
		gomail.WithTLSPolicy(gomail.TLSMandatory),
		gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
		gomail.WithUsername(n.cfg.User),
		gomail.WithPassword(n.cfg.Password),
	)
	if err != nil {
		return fmt.Errorf("smtp client error: %w", err)
	}

	if err := client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("smtp send error: %w", err)
	}

	n.logger.InfoContext(ctx, "password reset email sent", "to", toEmail)
	return nil
}

// LogNotifier はSMTPが未設定の開発環境向けに、リセットリンクを
// ログに出力するだけの実装です。
type LogNotifier struct {
	FrontendURL string
	Logger      *slog.Logger
}

// SendPasswordReset はリセットリンクをログに出力します。
func (n *LogNotifier) SendPasswordReset(ctx context.Context, toEmail, resetToken string) error {
	resetLink := fmt.Sprintf("%s/reset-password?token=%s", n.FrontendURL, resetToken)
	n.Logger.InfoContext(ctx, "[DEV MODE] password reset link", "to", toEmail, "link", resetLink)
	return nil
}

func textBody(resetLink string) string {
	return fmt.Sprintf(`Reset Your Password - askPDF

You requested to reset your password for your askPDF account.

Click the link below to reset your password:
%s

This link will expire in 15 minutes.

If you didn't request this, please ignore this email.
`, resetLink)
}

func htmlBody(resetLink string) string {
	return fmt.Sprintf(`<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2 style="color: #667eea;">Reset Your Password</h2>
    <p>You requested to reset your password for your askPDF account.</p>
    <p>Click the button below to reset your password:</p>
    <a href="%[1]s"
       style="display: inline-block; padding: 12px 24px; background: linear-gradient(135deg, #667eea 0%%, #764ba2 100%%); color: white; text-decoration: none; border-radius: 25px; margin: 20px 0;">
      Reset Password
    </a>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all; color: #667eea;">%[1]s</p>
    <p style="color: #666; font-size: 14px;">This link will expire in 15 minutes.</p>
    <p style="color: #666; font-size: 14px;">If you didn't request this, please ignore this email.</p>
    <hr style="border: none; border-top: 1px solid #eee; margin: 20px 0;">
    <p style="color: #999; font-size: 12px;">askPDF - Your PDF Assistant</p>
  </div>
</body>
</html>
`, resetLink)
}
