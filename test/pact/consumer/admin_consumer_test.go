//go:build pact
// +build pact

package consumer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"testing"
	"time"

	pacttest "github.com/Apurer/pizzeria-api/test/pact"

	pactconsumer "github.com/pact-foundation/pact-go/v2/consumer"
	pactlog "github.com/pact-foundation/pact-go/v2/log"
	"github.com/pact-foundation/pact-go/v2/matchers"
	"github.com/stretchr/testify/require"
)

type orderPayload struct {
	ID               string  `json:"id"`
	Status           string  `json:"status"`
	StatusLabel      string  `json:"statusLabel"`
	TotalAmount      float64 `json:"totalAmount"`
	EstimatedMinutes *int    `json:"estimatedMinutes"`
	Customer         struct {
		Name string `json:"name"`
	} `json:"customer"`
}

type actionPayload struct {
	Order        orderPayload `json:"order"`
	Notification struct {
		Kind string `json:"kind"`
		Sent bool   `json:"sent"`
	} `json:"notification"`
}

type problemDetail struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
}

func (p problemDetail) Error() string {
	return fmt.Sprintf("%s (status %d)", p.Title, p.Status)
}

func TestAdminDashboardContract(t *testing.T) {
	pactlog.SetLogLevel("INFO")

	pact, err := pactconsumer.NewV2Pact(pactconsumer.MockHTTPProviderConfig{
		Consumer: pacttest.ConsumerName,
		Provider: pacttest.ProviderName,
		PactDir:  pacttest.PactDir(t),
		LogDir:   pacttest.LogDir(t),
	})
	require.NoError(t, err)

	jsonContentType := matchers.Regex("application/json; charset=utf-8", "application\\/json(?:;\\s?charset=utf-8)?")
	orderMatcher := func(status string) matchers.Map {
		return matchers.Map{
			"id":          matchers.Like(pacttest.AwaitingOrderID),
			"status":      matchers.Term(status, "awaiting_confirmation|pending|preparing|ready|delivered|cancelled"),
			"statusLabel": matchers.Like("label"),
			"totalAmount": matchers.Like(21.5),
			"customer": matchers.Map{
				"name": matchers.Like(pacttest.CustomerName),
			},
		}
	}

	pact.AddInteraction().
		Given(pacttest.StateAwaitingOrder).
		UponReceiving("a request to list orders awaiting confirmation").
		WithRequest("GET", "/api/v1/admin/orders", func(b *pactconsumer.V2RequestBuilder) {
			b.Query("status", matchers.S("awaiting_confirmation"))
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			b.JSONBody(matchers.EachLike(orderMatcher("awaiting_confirmation"), 1))
		})

	pact.AddInteraction().
		Given(pacttest.StateAwaitingOrder).
		UponReceiving("a request to confirm an order").
		WithRequest("POST", "/api/v1/admin/orders/"+pacttest.AwaitingOrderID+"/confirm", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{"estimatedMinutes": matchers.Like(pacttest.EstimatedMinutes)})
		}).
		WillRespondWith(http.StatusOK, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", jsonContentType)
			confirmed := orderMatcher("pending")
			confirmed["estimatedMinutes"] = matchers.Like(pacttest.EstimatedMinutes)
			b.JSONBody(matchers.Map{
				"order": confirmed,
				"notification": matchers.Map{
					"kind": matchers.S("confirmation"),
					"sent": matchers.Like(true),
				},
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateOrderMissing).
		UponReceiving("a request for a missing order").
		WithRequest("GET", "/api/v1/admin/orders/"+pacttest.MissingOrderID).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/not-found"),
				"title":  matchers.S("Resource Not Found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	pact.AddInteraction().
		Given(pacttest.StateNoOrders).
		UponReceiving("a request to confirm an unknown order").
		WithRequest("POST", "/api/v1/admin/orders/"+pacttest.MissingOrderID+"/confirm", func(b *pactconsumer.V2RequestBuilder) {
			b.Header("Content-Type", matchers.S("application/json"))
			b.JSONBody(matchers.Map{"estimatedMinutes": matchers.Like(pacttest.EstimatedMinutes)})
		}).
		WillRespondWith(http.StatusNotFound, func(b *pactconsumer.V2ResponseBuilder) {
			b.Header("Content-Type", matchers.S("application/problem+json"))
			b.JSONBody(matchers.Map{
				"type":   matchers.S("/problems/not-found"),
				"status": matchers.Like(http.StatusNotFound),
			})
		})

	err = pact.ExecuteTest(t, func(config pactconsumer.MockServerConfig) error {
		client := &adminClient{
			baseURL: fmt.Sprintf("http://%s:%d", config.Host, config.Port),
			http:    &http.Client{Timeout: 5 * time.Second},
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		awaiting, err := client.ListOrders(ctx, "awaiting_confirmation")
		if err != nil {
			return fmt.Errorf("list orders: %w", err)
		}
		if len(awaiting) == 0 || awaiting[0].ID == "" {
			return fmt.Errorf("expected at least one awaiting order, got %+v", awaiting)
		}

		result, err := client.Confirm(ctx, pacttest.AwaitingOrderID, pacttest.EstimatedMinutes)
		if err != nil {
			return fmt.Errorf("confirm order: %w", err)
		}
		if result.Order.Status != "pending" || result.Order.EstimatedMinutes == nil {
			return fmt.Errorf("expected confirmed order with estimate, got %+v", result.Order)
		}
		if result.Notification.Kind != "confirmation" {
			return fmt.Errorf("expected confirmation notification, got %q", result.Notification.Kind)
		}

		if _, err := client.GetOrder(ctx, pacttest.MissingOrderID); err == nil {
			return fmt.Errorf("expected 404 for order %s", pacttest.MissingOrderID)
		}
		if _, err := client.Confirm(ctx, pacttest.MissingOrderID, pacttest.EstimatedMinutes); err == nil {
			return fmt.Errorf("expected 404 confirming order %s", pacttest.MissingOrderID)
		}
		return nil
	})
	require.NoError(t, err)
}

type adminClient struct {
	baseURL string
	http    *http.Client
}

func (c *adminClient) ListOrders(ctx context.Context, status string) ([]orderPayload, error) {
	var out []orderPayload
	err := c.do(ctx, http.MethodGet, "/api/v1/admin/orders?status="+url.QueryEscape(status), nil, &out)
	return out, err
}

func (c *adminClient) GetOrder(ctx context.Context, id string) (*orderPayload, error) {
	var out orderPayload
	if err := c.do(ctx, http.MethodGet, "/api/v1/admin/orders/"+id, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) Confirm(ctx context.Context, id string, minutes int) (*actionPayload, error) {
	var out actionPayload
	body := map[string]int{"estimatedMinutes": minutes}
	if err := c.do(ctx, http.MethodPost, "/api/v1/admin/orders/"+id+"/confirm", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *adminClient) do(ctx context.Context, method, path string, body, out any) error {
	var payload bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&payload).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, &payload)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusBadRequest {
		var problem problemDetail
		_ = json.NewDecoder(resp.Body).Decode(&problem)
		if problem.Status == 0 {
			problem.Status = resp.StatusCode
		}
		return problem
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
