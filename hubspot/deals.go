package hubspot

import (
	"context"
	"net/http"

	"churn-calculator/domain"
)

const (
	// AssociationTypeContactToDeal is HubSpot's built-in contact to deal type id.
	AssociationTypeContactToDeal = 3

	// AssociationCategoryHubSpotDefined is HubSpot's internal name for built-in
	// association types.
	AssociationCategoryHubSpotDefined = "HUBSPOT_DEFINED"
)

type Deal struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties,omitempty"`
}

type associationTarget struct {
	ID string `json:"id"`
}

type associationType struct {
	AssociationCategory string `json:"associationCategory"`
	AssociationTypeID   int    `json:"associationTypeId"`
}

type association struct {
	To    associationTarget `json:"to"`
	Types []associationType `json:"types"`
}

type createDealBody struct {
	Properties   map[string]string `json:"properties"`
	Associations []association     `json:"associations,omitempty"`
}

// CreateDeal creates a deal, associated with contactID when it is set.
func (c *Client) CreateDeal(ctx context.Context, props domain.ContactProperties, contactID string) (*Deal, error) {
	body := createDealBody{Properties: props}
	if contactID != "" {
		body.Associations = []association{{
			To: associationTarget{ID: contactID},
			Types: []associationType{{
				AssociationCategory: AssociationCategoryHubSpotDefined,
				AssociationTypeID:   AssociationTypeContactToDeal,
			}},
		}}
	}

	resp, err := c.api(ctx, http.MethodPost, "/crm/v3/objects/deals", nil, body)
	if err != nil {
		return nil, err
	}
	var deal Deal
	if err := decode(resp, &deal); err != nil {
		return nil, err
	}
	return &deal, nil
}
