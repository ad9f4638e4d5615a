package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"gopkg.in/gomail.v2"

	"consultation-queue-backend/internal/config"
	"consultation-queue-backend/internal/domain"
	"consultation-queue-backend/internal/logger"
)

// ErrNotDelivered is returned by the log sender, which never hands mail to a provider.
var ErrNotDelivered = errors.New("email logged, not delivered")

// NewEmailSender builds the sender selected by notification.provider.
func NewEmailSender(cfg *config.Config) (EmailSender, error) {
	n := cfg.Notification
	switch n.Provider {
	case "function", "":
		return NewFunctionSender(n.FunctionURL, n.FunctionToken, cfg.NotificationTimeout()), nil
	case "sendgrid":
		return NewSendGridSender(n.SendGridAPIKey, n.FromEmail, n.FromName), nil
	case "smtp":
		return NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.User, cfg.SMTP.Password, n.FromEmail, n.FromName), nil
	case "log":
		return NewLogSender(), nil
	default:
		return nil, fmt.Errorf("unknown notification provider: %s", n.Provider)
	}
}

// functionSender posts the payload to the serverless send-email function,
// which renders the template and forwards it to the mail provider.
type functionSender struct {
	url    string
	token  string
	client *http.Client
}

func NewFunctionSender(url, token string, timeout time.Duration) EmailSender {
	return &functionSender{
		url:    url,
		token:  token,
		client: &http.Client{Timeout: timeout},
	}
}

type functionResponse struct {
	Success bool   `json:"success"`
	EmailID string `json:"emailId"`
	Error   string `json:"error"`
}

func (s *functionSender) Name() string { return "send-email-function" }

func (s *functionSender) Send(ctx context.Context, payload domain.EmailPayload) (string, error) {
	if s.url == "" {
		return "", errors.New("send-email function URL not configured")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to encode email payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build email request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", uuid.NewString())
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("send-email function unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return "", fmt.Errorf("failed to read send-email response: %w", err)
	}
	var out functionResponse
	_ = json.Unmarshal(raw, &out)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := out.Error
		if msg == "" {
			msg = string(raw)
		}
		return "", fmt.Errorf("send-email function returned %d: %s", resp.StatusCode, msg)
	}
	if !out.Success {
		return "", fmt.Errorf("send-email function reported failure: %s", out.Error)
	}
	return out.EmailID, nil
}

type sendGridSender struct {
	apiKey    string
	fromEmail string
	fromName  string
}

func NewSendGridSender(apiKey, fromEmail, fromName string) EmailSender {
	return &sendGridSender{apiKey: apiKey, fromEmail: fromEmail, fromName: fromName}
}

func (s *sendGridSender) Name() string { return "sendgrid" }

func (s *sendGridSender) Send(ctx context.Context, payload domain.EmailPayload) (string, error) {
	msg, err := renderEmail(payload)
	if err != nil {
		return "", err
	}
	from := mail.NewEmail(s.fromName, s.fromEmail)
	to := mail.NewEmail(payload.Name+" "+payload.Surname, payload.To)
	message := mail.NewSingleEmail(from, msg.Subject, to, msg.Text, msg.HTML)

	client := sendgrid.NewSendClient(s.apiKey)
	response, err := client.SendWithContext(ctx, message)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	if response.StatusCode >= 400 {
		return "", fmt.Errorf("sendgrid error: status %d, body: %s", response.StatusCode, response.Body)
	}
	if ids := response.Headers["X-Message-Id"]; len(ids) > 0 {
		return ids[0], nil
	}
	return "", nil
}

type smtpSender struct {
	host     string
	port     int
	username string
	password string
	from     string
	fromName string
}

func NewSMTPSender(host string, port int, username, password, from, fromName string) EmailSender {
	return &smtpSender{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
		fromName: fromName,
	}
}

func (s *smtpSender) Name() string { return "smtp" }

func (s *smtpSender) Send(ctx context.Context, payload domain.EmailPayload) (string, error) {
	msg, err := renderEmail(payload)
	if err != nil {
		return "", err
	}
	id := uuid.NewString()

	m := gomail.NewMessage()
	m.SetAddressHeader("From", s.from, s.fromName)
	m.SetHeader("To", payload.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetHeader("Message-ID", fmt.Sprintf("<%s@%s>", id, s.host))
	m.SetBody("text/plain", msg.Text)
	m.AddAlternative("text/html", msg.HTML)

	d := gomail.NewDialer(s.host, s.port, s.username, s.password)

	done := make(chan error, 1)
	go func() { done <- d.DialAndSend(m) }()
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case err := <-done:
		if err != nil {
			return "", fmt.Errorf("failed to send email via gomail: %w", err)
		}
	}
	return id, nil
}

type logSender struct{}

func NewLogSender() EmailSender { return logSender{} }

func (logSender) Name() string { return "log" }

func (logSender) Send(ctx context.Context, payload domain.EmailPayload) (string, error) {
	msg, err := renderEmail(payload)
	if err != nil {
		return "", err
	}
	logger.InfoContext(ctx, "Email (log provider)", "to", payload.To, "subject", msg.Subject, "body", msg.Text)
	return "", ErrNotDelivered
}

type renderedEmail struct {
	Subject string
	Text    string
	HTML    string
}

var emailSubjects = map[domain.NotificationType]string{
	domain.NotificationApproval:       "Your consultation request has been approved",
	domain.NotificationDecline:        "Update on your consultation request",
	domain.NotificationPositionUpdate: "Your place in the consultation queue has changed",
	domain.NotificationYourTurn:       "It's your turn",
}

var emailTemplates = template.Must(template.New("email").Parse(`
{{define "approval"}}<p>Dear {{.Name}} {{.Surname}},</p>
<p>Your consultation request has been approved.{{if .QueuePosition}} You are number <strong>{{.QueuePosition}}</strong> in the queue.{{end}}</p>
<p>Estimated wait: {{.EstimatedTime}}</p>{{end}}
{{define "decline"}}<p>Dear {{.Name}} {{.Surname}},</p>
<p>We are unable to schedule your consultation at this time.</p>
<p>Reason: {{.Reason}}</p>{{end}}
{{define "position_update"}}<p>Dear {{.Name}} {{.Surname}},</p>
<p>You are now number <strong>{{.QueuePosition}}</strong> in the queue.</p>
<p>Estimated wait: {{.EstimatedTime}}</p>{{end}}
{{define "your_turn"}}<p>Dear {{.Name}} {{.Surname}},</p>
<p>It is your turn. Please make your way to the consultation room.</p>{{end}}
`))

func renderEmail(p domain.EmailPayload) (*renderedEmail, error) {
	subject, ok := emailSubjects[p.Type]
	if !ok {
		return nil, fmt.Errorf("no email template for type %q", p.Type)
	}
	var html bytes.Buffer
	if err := emailTemplates.ExecuteTemplate(&html, string(p.Type), p); err != nil {
		return nil, fmt.Errorf("failed to render %s email: %w", p.Type, err)
	}
	return &renderedEmail{Subject: subject, Text: plainText(p), HTML: html.String()}, nil
}

func plainText(p domain.EmailPayload) string {
	greeting := fmt.Sprintf("Dear %s %s,\n\n", p.Name, p.Surname)
	switch p.Type {
	case domain.NotificationApproval:
		body := "Your consultation request has been approved."
		if p.QueuePosition > 0 {
			body += fmt.Sprintf(" You are number %d in the queue.", p.QueuePosition)
		}
		return greeting + body + "\nEstimated wait: " + p.EstimatedTime
	case domain.NotificationDecline:
		return greeting + "We are unable to schedule your consultation at this time.\nReason: " + p.Reason
	case domain.NotificationPositionUpdate:
		return greeting + fmt.Sprintf("You are now number %d in the queue.\nEstimated wait: %s", p.QueuePosition, p.EstimatedTime)
	default:
		return greeting + "It is your turn. Please make your way to the consultation room."
	}
}
