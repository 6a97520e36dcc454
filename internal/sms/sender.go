// Package sms delivers text messages through the SMS proxy. A send never outlives its timeout.
package sms

import (
	"auction-engine/utils"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrRejected is returned when the proxy answers but reports the message as not sent
var ErrRejected = errors.New("sms rejected by proxy")

// Sender sends one text message to one phone number
type Sender interface {
	Send(ctx context.Context, phone, text string) (Result, error)
}

// Result is the proxy's answer
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type sendRequest struct {
	PhoneNumber string `json:"phoneNumber"`
	Message     string `json:"message"`
}

// ProxyClient posts messages to the proxy's /api/send-sms endpoint
type ProxyClient struct {
	endpoint string
	timeout  time.Duration
	http     *http.Client
}

// NewProxyClient creates a client for the proxy at baseURL
func NewProxyClient(baseURL string, timeout time.Duration) *ProxyClient {
	return &ProxyClient{
		endpoint: strings.TrimRight(baseURL, "/") + "/api/send-sms",
		timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
	}
}

// Send posts the message and decodes the proxy's verdict
func (p *ProxyClient) Send(ctx context.Context, phone, text string) (Result, error) {
	if phone == "" || text == "" {
		return Result{}, fmt.Errorf("sms: phone and text are required: %w", ErrRejected)
	}
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(sendRequest{PhoneNumber: phone, Message: text})
	if err != nil {
		return Result{}, fmt.Errorf("sms: encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint, bytes.NewReader(body))
	if err != nil {
		return Result{}, fmt.Errorf("sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("sms: post: %w", err)
	}
	defer resp.Body.Close()

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("sms: decode response (status %d): %w", resp.StatusCode, err)
	}
	if resp.StatusCode >= http.StatusBadRequest || !res.Success {
		return res, fmt.Errorf("sms: status %d, %q: %w", resp.StatusCode, res.Message, ErrRejected)
	}
	return res, nil
}

// LogSender only logs messages. Used when no proxy is configured.
type LogSender struct{}

func (LogSender) Send(_ context.Context, phone, text string) (Result, error) {
	utils.Info("sms: proxy not configured, message logged only", map[string]any{
		"phone":   maskPhone(phone),
		"message": text,
	})
	return Result{Success: true, Message: "logged"}, nil
}

// maskPhone keeps the last four digits
func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return phone
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
