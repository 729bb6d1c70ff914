package hubspot

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"churn-calculator/domain"
)

const contactsPath = "/crm/v3/objects/contacts"

type Contact struct {
	ID         string            `json:"id"`
	Properties map[string]string `json:"properties,omitempty"`
}

type propertiesBody struct {
	Properties map[string]string `json:"properties"`
}

// GetContactByEmail looks a contact up by email. A 404 is reported as
// found == false with a nil error.
func (c *Client) GetContactByEmail(ctx context.Context, email string, properties ...string) (*Contact, bool, error) {
	query := url.Values{}
	query.Set("idProperty", "email")
	if len(properties) > 0 {
		query.Set("properties", strings.Join(properties, ","))
	}

	resp, err := c.api(ctx, http.MethodGet, contactsPath+"/"+url.PathEscape(email), query, nil)
	if err != nil {
		if domain.StatusOf(err) == http.StatusNotFound {
			return nil, false, nil
		}
		return nil, false, err
	}

	var contact Contact
	if err := decode(resp, &contact); err != nil {
		return nil, false, err
	}
	return &contact, true, nil
}

// CreateContact creates a contact and returns it with its new id.
func (c *Client) CreateContact(ctx context.Context, props domain.ContactProperties) (*Contact, error) {
	resp, err := c.api(ctx, http.MethodPost, contactsPath, nil, propertiesBody{Properties: props})
	if err != nil {
		return nil, err
	}
	var contact Contact
	if err := decode(resp, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// UpdateContact patches only the given properties of an existing contact.
func (c *Client) UpdateContact(ctx context.Context, id string, props domain.ContactProperties) (*Contact, error) {
	resp, err := c.api(ctx, http.MethodPatch, contactsPath+"/"+url.PathEscape(id), nil, propertiesBody{Properties: props})
	if err != nil {
		return nil, err
	}
	contact := Contact{ID: id}
	if len(resp.Body) > 0 {
		if err := decode(resp, &contact); err != nil {
			return nil, err
		}
	}
	if contact.ID == "" {
		contact.ID = id
	}
	return &contact, nil
}
