// Package email delivers transactional mail through SendGrid and runs the
// background dispatcher for best-effort sends.
package email

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
)

// Service renders templated messages and sends them through SendGrid.
type Service struct {
	client      *sendgrid.Client
	fromEmail   string
	fromName    string
	frontendURL string
}

func NewService(apiKey, fromEmail, fromName, frontendURL string) *Service {
	return &Service{
		client:      sendgrid.NewSendClient(apiKey),
		fromEmail:   fromEmail,
		fromName:    fromName,
		frontendURL: frontendURL,
	}
}

// SendVerificationEmail sends the account verification link.
func (s *Service) SendVerificationEmail(ctx context.Context, toEmail, name, token string) error {
	link := fmt.Sprintf("%s/verify/%s", s.frontendURL, token)

	body, err := render(verificationTemplate, map[string]string{"Name": name, "Link": link})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.send(ctx, toEmail, name, "Verify your Aurora account", body)
}

// SendOTPEmail sends the login one-time code.
func (s *Service) SendOTPEmail(ctx context.Context, toEmail, name, code string) error {
	body, err := render(otpTemplate, map[string]string{"Name": name, "Code": code})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.send(ctx, toEmail, name, "Your Aurora login code", body)
}

// SendPasswordResetEmail sends the password reset link.
func (s *Service) SendPasswordResetEmail(ctx context.Context, toEmail, name, token string) error {
	link := fmt.Sprintf("%s/reset-password?token=%s", s.frontendURL, token)

	body, err := render(resetTemplate, map[string]string{"Name": name, "Link": link})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.send(ctx, toEmail, name, "Reset your Aurora password", body)
}

// SendWelcomeEmail greets a freshly verified account.
func (s *Service) SendWelcomeEmail(ctx context.Context, toEmail, name string) error {
	body, err := render(welcomeTemplate, map[string]string{"Name": name, "Link": s.frontendURL})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.send(ctx, toEmail, name, "Welcome to Aurora", body)
}

// SendGoodbyeEmail is sent after a profile is deleted.
func (s *Service) SendGoodbyeEmail(ctx context.Context, toEmail, name string) error {
	body, err := render(goodbyeTemplate, map[string]string{"Name": name, "Link": s.frontendURL})
	if err != nil {
		return fmt.Errorf("render template: %w", err)
	}

	return s.send(ctx, toEmail, name, "You'll be missed at Aurora", body)
}

func (s *Service) send(ctx context.Context, toEmail, toName, subject, htmlBody string) error {
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(toName, toEmail)
	message := mail.NewSingleEmail(from, subject, to, "", htmlBody)

	response, err := s.client.SendWithContext(ctx, message)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if response.StatusCode >= 400 {
		return fmt.Errorf("sendgrid send: unexpected status %d", response.StatusCode)
	}

	return nil
}

func render(tmpl *template.Template, data map[string]string) (string, error) {
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

var (
	verificationTemplate = template.Must(template.New("verification").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2>Welcome to Aurora</h2>
    <p>Hi <b>{{.Name}}</b>,</p>
    <p>Click below to verify your account and begin exploring.</p>
    <p><a href="{{.Link}}" style="background:#1c1d4f;color:#fff;padding:12px 28px;border-radius:6px;text-decoration:none;">Verify Account</a></p>
    <p>Or copy and paste this link into your browser:</p>
    <p style="word-break: break-all;">{{.Link}}</p>
    <p style="color:#666;">If you didn't sign up, you can safely ignore this email.</p>
</div>
`))

	otpTemplate = template.Must(template.New("otp").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2>Login verification</h2>
    <p>Hi <b>{{.Name}}</b>,</p>
    <p>Use the following code to complete your login:</p>
    <h1 style="font-size: 36px; letter-spacing: 6px;">{{.Code}}</h1>
    <p>This code expires in 5 minutes.</p>
    <p style="color:#666;">If you didn't try to login, please ignore this email.</p>
</div>
`))

	resetTemplate = template.Must(template.New("reset").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2>Reset your password</h2>
    <p>Hi <b>{{.Name}}</b>,</p>
    <p>We received a request to reset your password. The link below is valid for 1 hour.</p>
    <p><a href="{{.Link}}" style="background:#1c1d4f;color:#fff;padding:12px 28px;border-radius:6px;text-decoration:none;">Reset Password</a></p>
    <p style="word-break: break-all;">{{.Link}}</p>
    <p style="color:#666;">If you didn't request this, your password remains unchanged.</p>
</div>
`))

	welcomeTemplate = template.Must(template.New("welcome").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2>Welcome to Aurora</h2>
    <p>Hi <b>{{.Name}}</b>,</p>
    <p>Your account is verified. Start exploring stories, share your imagination, and let your words light up the sky.</p>
    <p><a href="{{.Link}}" style="background:#1c1d4f;color:#fff;padding:12px 28px;border-radius:6px;text-decoration:none;">Visit Aurora</a></p>
</div>
`))

	goodbyeTemplate = template.Must(template.New("goodbye").Parse(`
<div style="font-family: sans-serif; max-width: 600px; margin: 0 auto; padding: 24px;">
    <h2>You'll be missed</h2>
    <p>Dear <b>{{.Name}}</b>,</p>
    <p>We're sorry to see you go. Whether this is goodbye or just see-you-later, you'll always have a home at Aurora.</p>
    <p><a href="{{.Link}}" style="background:#1c1d4f;color:#fff;padding:12px 28px;border-radius:6px;text-decoration:none;">Return Anytime</a></p>
</div>
`))
)
