// Package email delivers rendered notification mail. Lifecycle mail is
// always template-driven, so the provider surface is a single
// template-send call; plain sends stay private to the SMTP backend.
package email

import "context"

// Provider renders the named template with data and mails it. The
// subject travels in data under "subject".
type Provider interface {
	SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error
}

// NoOpProvider drops mail. Selected when no SMTP host is configured,
// which keeps local and test runs mail-free without conditionals at
// call sites.
type NoOpProvider struct{}

func (p *NoOpProvider) SendTemplate(ctx context.Context, to []string, templateName string, data map[string]interface{}) error {
	return nil
}
