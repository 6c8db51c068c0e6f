package mail

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	html, err := HTML("# Title\n\n| a | b |\n|---|---|\n| 1 | 2 |\n")
	if err != nil {
		t.Fatalf("HTML() error = %v", err)
	}
	for _, want := range []string{"<h1>Title</h1>", "<table>", "<td>1</td>"} {
		if !strings.Contains(html, want) {
			t.Errorf("HTML() = %q, want it to contain %q", html, want)
		}
	}
}

func TestLogSender(t *testing.T) {
	s := &LogSender{}
	ctx := context.Background()
	if err := s.Send(ctx, Message{Subject: "nobody"}); err == nil {
		t.Error("Send() without recipient succeeded")
	}
	if err := s.Send(ctx, Message{To: []string{"a@example.com"}, Subject: "hello"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	sent := s.Sent()
	if len(sent) != 1 || sent[0].Subject != "hello" {
		t.Errorf("Sent() = %+v, want the hello message", sent)
	}
}

func TestSMTP_Message(t *testing.T) {
	s := NewSMTP(SMTPConfig{Host: "localhost", From: "immotax@example.com"}, nil)
	m, err := s.message(Message{
		To:       []string{"tenant@example.com"},
		Subject:  "Rent reminder",
		Markdown: "Dear tenant,\n\n**please pay**.",
		Attachments: []Attachment{
			{Name: "receipt.pdf", ContentType: "application/pdf", Data: []byte("%PDF-1.4")},
		},
	})
	if err != nil {
		t.Fatalf("message() error = %v", err)
	}

	var buf bytes.Buffer
	if _, err := m.WriteTo(&buf); err != nil {
		t.Fatalf("WriteTo() error = %v", err)
	}
	raw := buf.String()
	for _, want := range []string{"Subject: Rent reminder", "tenant@example.com", "text/html", "receipt.pdf"} {
		if !strings.Contains(raw, want) {
			t.Errorf("message does not contain %q", want)
		}
	}

	if _, err := s.message(Message{To: []string{"not an address"}}); err == nil {
		t.Error("message() with an invalid recipient succeeded")
	}
}
