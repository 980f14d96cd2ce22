package mail

import (
	"context"
	"errors"
	"net/mail"
)

// ErrNoRecipient is returned when a message has no valid To address.
var ErrNoRecipient = errors.New("mail: message has no recipient")

// Message is a single outbound email. TemplateID, when set, takes precedence over Text/HTML.
type Message struct {
	To           mail.Address
	Subject      string
	Text         string
	HTML         string
	TemplateID   string
	TemplateData map[string]interface{}
}

// Mailer sends email. Send fails on transport errors; callers decide whether to propagate.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

func validate(msg Message) error {
	if msg.To.Address == "" {
		return ErrNoRecipient
	}
	if _, err := mail.ParseAddress(msg.To.Address); err != nil {
		return err
	}
	return nil
}
