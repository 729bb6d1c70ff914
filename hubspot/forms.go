package hubspot

import (
	"context"
	"net/http"
	"net/url"
)

type FormField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type FormContext struct {
	HUTK     string `json:"hutk,omitempty"`
	PageURI  string `json:"pageUri,omitempty"`
	PageName string `json:"pageName,omitempty"`
}

type Communication struct {
	Value              bool   `json:"value"`
	SubscriptionTypeID int    `json:"subscriptionTypeId"`
	Text               string `json:"text"`
}

type Consent struct {
	ConsentToProcess bool            `json:"consentToProcess"`
	Text             string          `json:"text"`
	Communications   []Communication `json:"communications,omitempty"`
}

type LegalConsentOptions struct {
	Consent Consent `json:"consent"`
}

type FormSubmission struct {
	Fields              []FormField         `json:"fields"`
	Context             *FormContext        `json:"context,omitempty"`
	LegalConsentOptions LegalConsentOptions `json:"legalConsentOptions"`
}

// SubmitForm posts a submission to the unauthenticated Forms API.
func (c *Client) SubmitForm(ctx context.Context, portalID, formID string, submission FormSubmission) error {
	path := "/submissions/v3/integration/submit/" + url.PathEscape(portalID) + "/" + url.PathEscape(formID)
	_, err := c.forms(ctx, http.MethodPost, path, submission)
	return err
}
