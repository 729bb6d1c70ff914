package hubspot

import (
	"context"
	"net/http"
	"net/url"
)

// EnrollInWorkflow enrolls the contact with the given email in a workflow.
func (c *Client) EnrollInWorkflow(ctx context.Context, workflowID, email string) error {
	path := "/automation/v3/workflows/" + url.PathEscape(workflowID) + "/enrollments/contacts/" + url.PathEscape(email)
	_, err := c.api(ctx, http.MethodPost, path, nil, nil)
	return err
}
