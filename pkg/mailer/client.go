package mailer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client talks to a transactional mail HTTP API.
type Client struct {
	BaseURL    string
	APIKey     string
	Sender     string
	HTTPClient *http.Client
}

type sendRequest struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Subject string `json:"subject"`
	Text    string `json:"text"`
}

type sendResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	MessageID string `json:"message_id"`
}

func NewClient(baseURL, apiKey, sender string) *Client {
	return &Client{
		BaseURL: baseURL,
		APIKey:  apiKey,
		Sender:  sender,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Send delivers a plain-text message. Callers treat failures as
// best-effort: a lost notification never blocks the work that triggered it.
func (c *Client) Send(to, subject, body string) error {
	requestData := sendRequest{
		From:    c.Sender,
		To:      to,
		Subject: subject,
		Text:    body,
	}

	jsonData, err := json.Marshal(requestData)
	if err != nil {
		return fmt.Errorf("failed to marshal mail request: %w", err)
	}

	url := fmt.Sprintf("%s/messages", c.BaseURL)

	req, err := http.NewRequest("POST", url, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var response sendResponse
	if err := json.Unmarshal(respBody, &response); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	if !response.Success {
		return fmt.Errorf("mail API rejected message: %s", response.Message)
	}

	return nil
}
