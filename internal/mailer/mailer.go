// Package mailer renders account emails and hands them to a transport.
package mailer

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Baaaki/agora/internal/metrics"
	"github.com/Baaaki/agora/pkg/logger"
	"go.uber.org/zap"
)

// Mailer sends the account lifecycle emails.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, to, token, name string) error
	SendPasswordResetEmail(ctx context.Context, to, token, name string) error
}

// Message is a rendered email ready for a transport.
type Message struct {
	Template string `json:"template"`
	To       string `json:"to"`
	Subject  string `json:"subject"`
	HTML     string `json:"html"`
	Text     string `json:"text"`
}

// Sender delivers a rendered message.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// Dispatcher implements Mailer on top of a Sender.
type Dispatcher struct {
	baseURL string
	sender  Sender
}

func NewDispatcher(baseURL string, sender Sender) *Dispatcher {
	return &Dispatcher{baseURL: strings.TrimRight(baseURL, "/"), sender: sender}
}

func (d *Dispatcher) SendVerificationEmail(ctx context.Context, to, token, name string) error {
	msg, err := renderVerification(to, name, d.link("/verify-email", token))
	if err != nil {
		return err
	}
	return d.send(ctx, msg)
}

func (d *Dispatcher) SendPasswordResetEmail(ctx context.Context, to, token, name string) error {
	msg, err := renderPasswordReset(to, name, d.link("/reset-password", token))
	if err != nil {
		return err
	}
	return d.send(ctx, msg)
}

func (d *Dispatcher) link(path, token string) string {
	return d.baseURL + path + "?token=" + url.QueryEscape(token)
}

func (d *Dispatcher) send(ctx context.Context, msg Message) error {
	err := d.sender.Send(ctx, msg)
	metrics.ObserveMail(msg.Template, err == nil)
	if err != nil {
		return fmt.Errorf("send %s email: %w", msg.Template, err)
	}
	return nil
}

// LogSender only logs. It is used when no mail transport is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, msg Message) error {
	logger.Log.Info("Mail transport disabled, email not sent",
		zap.String("template", msg.Template),
		zap.String("to", msg.To),
	)
	return nil
}

// AsyncSender hands messages to a background goroutine so callers never wait
// on the network. Failures are logged.
type AsyncSender struct {
	next    Sender
	timeout time.Duration
}

func NewAsyncSender(next Sender, timeout time.Duration) *AsyncSender {
	return &AsyncSender{next: next, timeout: timeout}
}

func (a *AsyncSender) Send(ctx context.Context, msg Message) error {
	go func() {
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.timeout)
		defer cancel()
		if err := a.next.Send(sendCtx, msg); err != nil {
			logger.Log.Error("Background email send failed",
				zap.String("template", msg.Template),
				zap.String("to", msg.To),
				zap.Error(err),
			)
		}
	}()
	return nil
}
