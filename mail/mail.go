// Package mail sends the notifications of the service: rent reminders,
// filing deadline reminders and generated documents.
//
// Bodies are written in markdown and sent as HTML with a plain text
// alternative.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"sync"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"go.uber.org/zap"
)

// Attachment is a file attached to a message.
type Attachment struct {
	Name        string
	ContentType string
	Data        []byte
}

// Message is a mail to send.
type Message struct {
	To          []string
	Subject     string
	Markdown    string // Markdown is the body of the message.
	Attachments []Attachment
}

// Sender sends messages.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// HTML converts a markdown body to HTML.
func HTML(md string) (string, error) {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "", fmt.Errorf("cannot convert markdown to HTML: %w", err)
	}
	return buf.String(), nil
}

// LogSender logs the messages instead of sending them. It keeps them in
// memory for inspection.
type LogSender struct {
	Log *zap.Logger

	mu   sync.Mutex
	sent []Message
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return fmt.Errorf("message %q has no recipient", msg.Subject)
	}
	s.mu.Lock()
	s.sent = append(s.sent, msg)
	s.mu.Unlock()
	if s.Log != nil {
		s.Log.Info("mail not sent, no SMTP server configured",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Int("attachments", len(msg.Attachments)),
		)
	}
	return nil
}

// Sent returns the messages sent so far.
func (s *LogSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}
