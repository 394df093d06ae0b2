package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// DefaultProwlURL is the public Prowl add-notification endpoint.
const DefaultProwlURL = "https://api.prowlapp.com/publicapi/add"

// Compile-time interface check.
var _ Notifier = (*ProwlNotifier)(nil)

// ProwlNotifier delivers push notifications via the Prowl API.
type ProwlNotifier struct {
	apiKey      string
	application string
	endpoint    string
	client      *http.Client
}

// NewProwlNotifier creates a ProwlNotifier for the given API key. The
// application name appears as the notification source on the device.
func NewProwlNotifier(apiKey, application string) *ProwlNotifier {
	if application == "" {
		application = "mirrortrade"
	}
	return &ProwlNotifier{
		apiKey:      apiKey,
		application: application,
		endpoint:    DefaultProwlURL,
		client:      &http.Client{Timeout: 10 * time.Second},
	}
}

// Name returns "prowl".
func (p *ProwlNotifier) Name() string { return "prowl" }

// Send posts the notification as form data to the Prowl add endpoint.
func (p *ProwlNotifier) Send(ctx context.Context, title, body string, priority Priority) error {
	form := url.Values{
		"apikey":      {p.apiKey},
		"application": {p.application},
		"event":       {title},
		"description": {body},
		"priority":    {strconv.Itoa(int(priority))},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("prowl: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("prowl: send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("prowl: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}
