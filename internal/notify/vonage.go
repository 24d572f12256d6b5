package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"calflow/internal/config"
	"calflow/internal/outbound"
)

// Vonage sends SMS messages through the Vonage REST API.
type Vonage struct {
	client    *outbound.Client
	baseURL   string
	apiKey    string
	apiSecret string
	from      string
	defaultTo string
}

func NewVonage(client *outbound.Client, cfg config.NotifyConfig) *Vonage {
	return &Vonage{
		client:    client,
		baseURL:   strings.TrimSuffix(cfg.VonageURL, "/"),
		apiKey:    cfg.VonageAPIKey,
		apiSecret: cfg.VonageAPISecret,
		from:      cfg.SenderName,
		defaultTo: cfg.PhoneNumber,
	}
}

// Send texts message to the phone number to, or to the configured number
// when to is empty.
func (v *Vonage) Send(ctx context.Context, to, message string) error {
	if to == "" {
		to = v.defaultTo
	}
	switch {
	case v.apiKey == "" || v.apiSecret == "":
		return failed("sms", config.Missing("VONAGE_API_KEY/VONAGE_API_SECRET"))
	case to == "":
		return failed("sms", config.Missing("USER_PHONE_NUMBER"))
	}

	var payload struct {
		Messages []struct {
			Status    string `json:"status"`
			ErrorText string `json:"error-text"`
		} `json:"messages"`
	}
	err := v.client.Do(ctx, outbound.Call{
		Service: "vonage",
		Op:      "sms",
		Method:  http.MethodPost,
		URL:     v.baseURL + "/sms/json",
		Form: url.Values{
			"api_key":    {v.apiKey},
			"api_secret": {v.apiSecret},
			"from":       {v.from},
			"to":         {to},
			"text":       {message},
		},
	}, &payload)
	if err != nil {
		return failed("sms", err)
	}
	if len(payload.Messages) == 0 {
		return failed("sms", errors.New("empty delivery report"))
	}
	if m := payload.Messages[0]; m.Status != "0" {
		return failed("sms", fmt.Errorf("status %s: %s", m.Status, m.ErrorText))
	}
	return nil
}
