package recaptcha

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yayitinyu/RelayCat/internal/infra/httpclient"
)

const siteVerifyURL = "https://www.google.com/recaptcha/api/siteverify"

// Client talks to the reCAPTCHA siteverify endpoint.
type Client struct {
	http     *http.Client
	secret   string
	endpoint string
}

// Result is the subset of the siteverify response the verification page
// needs: the pass/fail bit and the hostname for the domain check.
type Result struct {
	Success    bool     `json:"success"`
	Hostname   string   `json:"hostname"`
	ErrorCodes []string `json:"error-codes"`
}

func NewClient(secret string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		http:     httpclient.New(timeout),
		secret:   secret,
		endpoint: siteVerifyURL,
	}
}

func (c *Client) Verify(ctx context.Context, response, remoteIP string) (Result, error) {
	if strings.TrimSpace(response) == "" {
		return Result{}, fmt.Errorf("captcha response is empty")
	}

	form := url.Values{
		"secret":   {c.secret},
		"response": {response},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("create siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("call siteverify: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return Result{}, fmt.Errorf("unexpected siteverify status: %d", resp.StatusCode)
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return Result{}, fmt.Errorf("decode siteverify response: %w", err)
	}

	return result, nil
}
