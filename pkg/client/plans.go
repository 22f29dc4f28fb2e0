package client

import "context"

// PlanService handles the public plan catalog
type PlanService struct {
	client *Client
}

// List retrieves the plan catalog
func (s *PlanService) List(ctx context.Context) (*PlanCatalog, error) {
	var catalog PlanCatalog
	if err := s.client.doRequest(ctx, "GET", "/api/v1/plans", nil, &catalog); err != nil {
		return nil, err
	}
	return &catalog, nil
}
