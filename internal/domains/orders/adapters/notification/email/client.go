package email

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/Apurer/pizzeria-api/internal/domains/orders/domain"
	"github.com/Apurer/pizzeria-api/internal/domains/orders/ports"
)

var _ ports.Notifier = (*Client)(nil)

var ErrDeliveryRejected = errors.New("email provider rejected the message")

// Config describes the transactional email HTTP API.
type Config struct {
	APIURL         string
	APIKey         string
	From           string
	RestaurantName string
	Locale         string
	Timeout        time.Duration
	HTTPClient     *http.Client
}

// Client sends order notifications through a JSON email API.
type Client struct {
	url      string
	apiKey   string
	from     string
	http     *http.Client
	composer *Composer
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIURL) == "" {
		return nil, errors.New("email api url is required")
	}
	if strings.TrimSpace(cfg.From) == "" {
		return nil, errors.New("email sender address is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	restaurant := cfg.RestaurantName
	if restaurant == "" {
		restaurant = "Pizzeria"
	}
	return &Client{
		url:      cfg.APIURL,
		apiKey:   cfg.APIKey,
		from:     cfg.From,
		http:     httpClient,
		composer: NewComposer(restaurant, cfg.Locale),
	}, nil
}

func (c *Client) SendOrderConfirmation(ctx context.Context, order *domain.Order, estimatedTimeLabel string) error {
	msg, err := c.composer.Confirmation(order, estimatedTimeLabel)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

func (c *Client) SendOrderCancellation(ctx context.Context, order *domain.Order) error {
	msg, err := c.composer.Cancellation(order)
	if err != nil {
		return err
	}
	return c.send(ctx, msg)
}

func (c *Client) send(ctx context.Context, msg Message) error {
	if strings.TrimSpace(msg.To) == "" {
		return errors.New("recipient address is empty")
	}
	body, err := json.Marshal(sendRequest{
		From:    c.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send email: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d: %s", ErrDeliveryRejected, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
