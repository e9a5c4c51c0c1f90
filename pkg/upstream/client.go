package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const forwardTimeout = 60 * time.Second

// HTTPError carries a non-success upstream status so handlers can surface
// the upstream's status code and body verbatim.
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("upstream status %d: %s", e.StatusCode, e.Body)
}

// ModelRecord is one entry of the upstream model list. Capability flags
// absent upstream decode as false.
type ModelRecord struct {
	ID     string `json:"id"`
	Image  bool   `json:"image"`
	Vision bool   `json:"vision"`
	Audio  bool   `json:"audio"`
}

// Client talks to the single configured upstream origin. The handshake and
// catalog paths are deliberately untimed; forwarding uses a bounded timeout.
type Client struct {
	baseURL   string
	handshake *http.Client
	forward   *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		handshake: &http.Client{},
		forward:   &http.Client{Timeout: forwardTimeout},
	}
}

func (c *Client) BaseURL() string { return c.baseURL }

// ListModels fetches the raw upstream model list with an existing credential.
func (c *Client) ListModels(ctx context.Context, credential, userAgent string) ([]ModelRecord, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/Azure/models", nil)
	if err != nil {
		return nil, err
	}
	setAuthHeaders(req, credential, userAgent)
	resp, err := c.handshake.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}
	var out struct {
		Data []ModelRecord `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode model list: %w", err)
	}
	return out.Data, nil
}

// ChatCompletion forwards a chat-completion body verbatim. The caller owns
// the response and must close its body; streaming and non-streaming requests
// share this path.
func (c *Client) ChatCompletion(ctx context.Context, body []byte, credential, userAgent string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/Azure/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	setAuthHeaders(req, credential, userAgent)
	return c.forward.Do(req)
}

// GenerateImage posts an image-generation request and returns the raw
// response body so unknown upstream fields survive the round trip.
func (c *Client) GenerateImage(ctx context.Context, model, prompt, credential, userAgent string) ([]byte, error) {
	payload, err := json.Marshal(map[string]string{"model": model, "prompt": prompt})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/Azure/images/generations", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	setAuthHeaders(req, credential, userAgent)
	resp, err := c.forward.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, readHTTPError(resp)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 16<<20))
}

func setAuthHeaders(req *http.Request, credential, userAgent string) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+credential)
	req.Header.Set("User-Agent", userAgent)
}

func readHTTPError(resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Body:       strings.TrimSpace(string(b)),
	}
}
