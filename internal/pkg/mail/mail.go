// Package mail sends email through a provider-neutral interface.
package mail

import (
	"context"
	"io"
)

// Message is an outgoing email. When both bodies are set the message is sent
// as multipart/alternative.
type Message struct {
	From     string
	To       []string
	Cc       []string
	Bcc      []string
	Subject  string
	TextBody string
	HTMLBody string
}

// Mail delivers messages.
type Mail interface {
	io.Closer
	Send(ctx context.Context, msg Message) error
}
