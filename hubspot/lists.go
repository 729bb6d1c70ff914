package hubspot

import (
	"context"
	"net/http"
	"net/url"
)

type listMembershipInput struct {
	ID string `json:"id"`
}

type listMembershipBody struct {
	Inputs []listMembershipInput `json:"inputs"`
}

// AddToList adds contacts to a static list.
func (c *Client) AddToList(ctx context.Context, listID string, contactIDs ...string) error {
	body := listMembershipBody{Inputs: make([]listMembershipInput, 0, len(contactIDs))}
	for _, id := range contactIDs {
		body.Inputs = append(body.Inputs, listMembershipInput{ID: id})
	}
	_, err := c.api(ctx, http.MethodPost, "/crm/v3/lists/"+url.PathEscape(listID)+"/memberships/batch/add", nil, body)
	return err
}
