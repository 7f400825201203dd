// Package notification renders templated emails and hands them to a transport
// without ever blocking or failing the request that triggered them.
package notification

import (
	"context"
	"time"
)

type Template string

const (
	TemplateWelcome                 Template = "welcome"
	TemplateApplicationConfirmation Template = "application-confirmation"
	TemplateApplicationStatusUpdate Template = "application-status-update"
	TemplateReviewAssigned          Template = "review-assigned"
)

// Notifier is what domain services depend on.
type Notifier interface {
	Deliver(recipient string, template Template, data map[string]any)
}

type Message struct {
	To        string    `json:"to"`
	From      string    `json:"from"`
	Subject   string    `json:"subject"`
	HTML      string    `json:"html"`
	Text      string    `json:"text"`
	Template  Template  `json:"template"`
	CreatedAt time.Time `json:"createdAt"`
}

// Sender moves a rendered message to its transport.
type Sender interface {
	Send(ctx context.Context, msg Message) error
	Name() string
}

// Nop drops every notification. Used where mail is irrelevant.
type Nop struct{}

func (Nop) Deliver(string, Template, map[string]any) {}
