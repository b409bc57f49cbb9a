package captcha

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

var ErrVerificationFailed = errors.New("anti-automation verification failed")

// Verifier checks an anti-automation token before an estimate submission
// is allowed to touch persistence.
type Verifier interface {
	Verify(token, remoteIP string) error
}

// HTTPVerifier verifies tokens against an hCaptcha-compatible siteverify
// endpoint.
type HTTPVerifier struct {
	Endpoint   string
	Secret     string
	HTTPClient *http.Client
}

type verifyResponse struct {
	Success    bool     `json:"success"`
	ErrorCodes []string `json:"error-codes"`
}

func NewHTTPVerifier(endpoint, secret string) *HTTPVerifier {
	return &HTTPVerifier{
		Endpoint: endpoint,
		Secret:   secret,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (v *HTTPVerifier) Verify(token, remoteIP string) error {
	if token == "" {
		return ErrVerificationFailed
	}

	form := url.Values{}
	form.Set("secret", v.Secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	resp, err := v.HTTPClient.Post(v.Endpoint, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to reach verification endpoint: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read verification response: %w", err)
	}

	var result verifyResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("failed to parse verification response: %w", err)
	}
	if !result.Success {
		return ErrVerificationFailed
	}
	return nil
}
