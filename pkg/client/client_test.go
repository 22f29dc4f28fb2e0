package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(Config{BaseURL: srv.URL + "/", Token: "tok"})
}

func writeData(w http.ResponseWriter, status int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]interface{}{"success": true, "message": message, "data": data})
}

func TestClient_UnwrapsEnvelope(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer tok" {
			t.Errorf("Authorization = %q", r.Header.Get("Authorization"))
		}
		if r.URL.Path != "/api/v1/subscriptions/current" {
			t.Errorf("path = %s", r.URL.Path)
		}
		writeData(w, http.StatusOK, "", map[string]interface{}{
			"id": "sub-1", "plan_id": "premium-1w", "status": "active", "entitled": true, "remaining_seconds": 60,
		})
	})

	sub, err := c.Subscriptions().Current(context.Background())
	if err != nil {
		t.Fatalf("Current() error = %v", err)
	}
	if sub.ID != "sub-1" || !sub.Entitled || sub.RemainingSeconds != 60 {
		t.Errorf("subscription = %+v", sub)
	}
}

func TestClient_APIError(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  string
		wantCheck func(*APIError) bool
	}{
		{
			name:      "conflict",
			status:    http.StatusConflict,
			body:      `{"success":false,"error":{"code":"DUPLICATE_ACTIVE_SUBSCRIPTION","message":"User already has an active or pending subscription"}}`,
			wantCode:  "DUPLICATE_ACTIVE_SUBSCRIPTION",
			wantCheck: (*APIError).IsConflict,
		},
		{
			name:      "retryable",
			status:    http.StatusServiceUnavailable,
			body:      `{"success":false,"error":{"code":"GATEWAY_UNAVAILABLE","message":"Payment gateway unavailable, try again","retryable":true}}`,
			wantCode:  "GATEWAY_UNAVAILABLE",
			wantCheck: func(e *APIError) bool { return e.IsServerError() && e.Retryable },
		},
		{
			name:      "plain text",
			status:    http.StatusBadGateway,
			body:      "bad gateway",
			wantCheck: func(e *APIError) bool { return e.Message == "bad gateway" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})

			_, err := c.Subscriptions().Create(context.Background(), CreateSubscriptionRequest{PlanID: "basic-1h"})
			apiErr, ok := err.(*APIError)
			if !ok {
				t.Fatalf("error = %T %v, want *APIError", err, err)
			}
			if apiErr.StatusCode != tt.status || apiErr.Code != tt.wantCode || !tt.wantCheck(apiErr) {
				t.Errorf("APIError = %+v", apiErr)
			}
			if tt.wantCode != "" && !HasCode(err, tt.wantCode) {
				t.Errorf("HasCode(%s) = false", tt.wantCode)
			}
			if IsRetryable(err) != apiErr.Retryable {
				t.Errorf("IsRetryable() disagrees with the envelope")
			}
		})
	}
}

func TestPaymentService_InitiateReturnsMessage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req InitiatePaymentRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.PhoneNumber != "0712345678" {
			t.Errorf("phone = %s", req.PhoneNumber)
		}
		writeData(w, http.StatusAccepted, "Check your phone to complete the payment", map[string]interface{}{
			"id": "pay-1", "amount": "150", "status": "initiated",
		})
	})

	p, msg, err := c.Payments().Initiate(context.Background(), InitiatePaymentRequest{SubscriptionID: "sub-1", PhoneNumber: "0712345678"})
	if err != nil {
		t.Fatalf("Initiate() error = %v", err)
	}
	if p.ID != "pay-1" || p.Amount.String() != "150" || msg == "" {
		t.Errorf("payment = %+v, message %q", p, msg)
	}
}

func TestAdminService_ListSubscriptionsQuery(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("user_id") != "7" || q.Get("status") != "active" || q.Get("page") != "2" {
			t.Errorf("query = %s", r.URL.RawQuery)
		}
		writeData(w, http.StatusOK, "", map[string]interface{}{
			"data":        []map[string]interface{}{{"id": "sub-1"}},
			"page":        2,
			"page_size":   20,
			"total_items": 21,
			"total_pages": 2,
		})
	})

	page, err := c.Admin().ListSubscriptions(context.Background(), &SubscriptionListOptions{
		ListOptions: ListOptions{Page: 2},
		UserID:      7,
		Status:      "active",
	})
	if err != nil {
		t.Fatalf("ListSubscriptions() error = %v", err)
	}
	if len(page.Data) != 1 || page.TotalItems != 21 {
		t.Errorf("page = %+v", page)
	}
}
