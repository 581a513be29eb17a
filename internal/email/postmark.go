package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// sendEmailRequest is the JSON body posted to the email API.
// Field names follow the Postmark wire format.
type sendEmailRequest struct {
	From     string `json:"From"`
	To       string `json:"To"`
	Subject  string `json:"Subject"`
	TextBody string `json:"TextBody"`
	HTMLBody string `json:"HtmlBody"`
}

// PostmarkClient delivers email through a Postmark-compatible HTTP API.
// The base URL is injected from config so tests can point to a local mock.
type PostmarkClient struct {
	baseURL     string
	sender      string
	serverToken string
	httpClient  *http.Client
}

func NewPostmarkClient(baseURL, sender, serverToken string, timeout time.Duration) *PostmarkClient {
	return &PostmarkClient{
		baseURL:     baseURL,
		sender:      sender,
		serverToken: serverToken,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Send posts one email to the API's /email endpoint. Any transport error or
// non-2xx response is returned as-is; the dispatcher treats these as
// transient and retries within the task's budget.
func (c *PostmarkClient) Send(ctx context.Context, to, subject, textBody, htmlBody string) error {
	body, err := json.Marshal(sendEmailRequest{
		From:     c.sender,
		To:       to,
		Subject:  subject,
		TextBody: textBody,
		HTMLBody: htmlBody,
	})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/email", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Postmark-Server-Token", c.serverToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected email API status: %d", resp.StatusCode)
	}
	return nil
}

// compile-time check that PostmarkClient implements Sender
var _ Sender = (*PostmarkClient)(nil)
