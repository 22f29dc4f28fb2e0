package client

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
)

// AdminService handles operator actions. The token must carry the admin role.
type AdminService struct {
	client *Client
}

// SubscriptionListOptions filters the subscription listing
type SubscriptionListOptions struct {
	ListOptions
	UserID int64
	PlanID string
	Status string
}

// RenewRequest extends a subscription
type RenewRequest struct {
	Days  int `json:"days,omitempty"`
	Hours int `json:"hours,omitempty"`
}

// ExpireResult reports a manual sweep
type ExpireResult struct {
	Expired int64 `json:"expired"`
}

func pageQuery(query url.Values, opts ListOptions) {
	if opts.Page > 0 {
		query.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PageSize > 0 {
		query.Set("page_size", strconv.Itoa(opts.PageSize))
	}
}

func withQuery(path string, query url.Values) string {
	if len(query) > 0 {
		return path + "?" + query.Encode()
	}
	return path
}

// ListSubscriptions lists subscriptions across users
func (s *AdminService) ListSubscriptions(ctx context.Context, opts *SubscriptionListOptions) (*Page[Subscription], error) {
	query := url.Values{}
	if opts != nil {
		pageQuery(query, opts.ListOptions)
		if opts.UserID > 0 {
			query.Set("user_id", strconv.FormatInt(opts.UserID, 10))
		}
		if opts.PlanID != "" {
			query.Set("plan_id", opts.PlanID)
		}
		if opts.Status != "" {
			query.Set("status", opts.Status)
		}
	}

	var page Page[Subscription]
	if err := s.client.doRequest(ctx, "GET", withQuery("/api/v1/admin/subscriptions", query), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// Expire runs the expiry sweep now
func (s *AdminService) Expire(ctx context.Context) (int64, error) {
	var res ExpireResult
	if err := s.client.doRequest(ctx, "POST", "/api/v1/admin/subscriptions/expire", nil, &res); err != nil {
		return 0, err
	}
	return res.Expired, nil
}

// Renew extends a subscription's window
func (s *AdminService) Renew(ctx context.Context, id string, req RenewRequest) (*Subscription, error) {
	var sub Subscription
	path := fmt.Sprintf("/api/v1/admin/subscriptions/%s/renew", url.PathEscape(id))
	if err := s.client.doRequest(ctx, "POST", path, req, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// Cancel ends a subscription
func (s *AdminService) Cancel(ctx context.Context, id string) (*Subscription, error) {
	var sub Subscription
	path := fmt.Sprintf("/api/v1/admin/subscriptions/%s/cancel", url.PathEscape(id))
	if err := s.client.doRequest(ctx, "POST", path, nil, &sub); err != nil {
		return nil, err
	}
	return &sub, nil
}

// ListReconciliations lists the reconciliation queue. An empty status lists open
// entries; "all" lists every status.
func (s *AdminService) ListReconciliations(ctx context.Context, status string, opts ListOptions) (*Page[ReconciliationEntry], error) {
	query := url.Values{}
	pageQuery(query, opts)
	if status != "" {
		query.Set("status", status)
	}

	var page Page[ReconciliationEntry]
	if err := s.client.doRequest(ctx, "GET", withQuery("/api/v1/admin/reconciliations", query), nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// RetryReconciliations runs the activation retry pass now
func (s *AdminService) RetryReconciliations(ctx context.Context) (*RetryReport, error) {
	var report RetryReport
	if err := s.client.doRequest(ctx, "POST", "/api/v1/admin/reconciliations/retry", nil, &report); err != nil {
		return nil, err
	}
	return &report, nil
}
