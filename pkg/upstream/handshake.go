package upstream

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"fmt"
	mathrand "math/rand"
	"net/http"
	"time"
)

var (
	nowFunc     = time.Now
	randIntn    = mathrand.Intn
	pickProfile = func() Profile { return Profiles[randIntn(len(Profiles))] }
)

type publicKeyResponse struct {
	Data      json.RawMessage `json:"data"`
	User      *string         `json:"user"`
	PublicKey string          `json:"public_key"`
}

type handshakePayload struct {
	Data      json.RawMessage `json:"data"`
	User      string          `json:"user"`
	Timestamp int64           `json:"timestamp"`
	UserAgent string          `json:"user_agent"`
}

// Handshake mints one fresh credential: it fetches a public key and
// challenge datum, encrypts a payload binding the datum to the chosen
// identity profile, and returns the base64 ciphertext. That ciphertext is
// the bearer token - it is never parsed locally, only presented upstream.
func (c *Client) Handshake(ctx context.Context) (string, Profile, error) {
	profile := pickProfile()

	resp, err := c.fetchPublicKey(ctx, profile)
	if err != nil {
		return "", Profile{}, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", Profile{}, readHTTPError(resp)
	}

	var keyData publicKeyResponse
	if err := json.NewDecoder(resp.Body).Decode(&keyData); err != nil {
		return "", Profile{}, fmt.Errorf("decode public key response: %w", err)
	}

	user := "error"
	if keyData.User != nil {
		user = *keyData.User
	}
	payload, err := json.Marshal(handshakePayload{
		Data:      keyData.Data,
		User:      user,
		Timestamp: nowFunc().UnixMilli(),
		UserAgent: profile.UserAgent,
	})
	if err != nil {
		return "", Profile{}, fmt.Errorf("encode handshake payload: %w", err)
	}

	pub, err := parseRSAPublicKey(keyData.PublicKey)
	if err != nil {
		return "", Profile{}, err
	}
	ciphertext, err := rsa.EncryptPKCS1v15(rand.Reader, pub, payload)
	if err != nil {
		return "", Profile{}, fmt.Errorf("encrypt handshake payload: %w", err)
	}
	return base64.StdEncoding.EncodeToString(ciphertext), profile, nil
}

// fetchPublicKey prefers POST and falls back to GET once; some upstream
// deployments reject one of the two methods.
func (c *Client) fetchPublicKey(ctx context.Context, profile Profile) (*http.Response, error) {
	url := c.baseURL + "/backend-api/v2/public-key"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", profile.UserAgent)
	resp, err := c.handshake.Do(req)
	if err == nil && resp.StatusCode == http.StatusOK {
		return resp, nil
	}
	if err == nil {
		resp.Body.Close()
	}
	req, err = http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", profile.UserAgent)
	return c.handshake.Do(req)
}

func parseRSAPublicKey(pemData string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemData))
	if block == nil {
		return nil, fmt.Errorf("no PEM block in public key")
	}
	if key, err := x509.ParsePKIXPublicKey(block.Bytes); err == nil {
		pub, ok := key.(*rsa.PublicKey)
		if !ok {
			return nil, fmt.Errorf("public key is %T, not RSA", key)
		}
		return pub, nil
	}
	pub, err := x509.ParsePKCS1PublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}
	return pub, nil
}
