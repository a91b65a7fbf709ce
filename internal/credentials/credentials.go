// Package credentials acquires bearer tokens for the upstream
// marketplace API. Two authentication variants exist, selected by
// configuration: a shared client secret or an x509 client certificate.
package credentials

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/smallbiznis/marketfill/internal/config"
)

// TokenProvider produces a bearer token for upstream calls. The token
// is opaque to callers.
type TokenProvider interface {
	Token(ctx context.Context) (string, error)
}

// NewFromConfig builds the provider variant the configuration names.
func NewFromConfig(cfg config.Config) (TokenProvider, error) {
	switch cfg.Credential.Kind {
	case config.CredentialKindClientSecret:
		if cfg.Credential.ClientSecret == "" {
			return nil, fmt.Errorf("credentials: client secret is required for kind %q", cfg.Credential.Kind)
		}
		return &clientSecretProvider{
			httpClient: &http.Client{Timeout: 30 * time.Second},
			tokenURL:   cfg.Credential.TokenURL,
			clientID:   cfg.Credential.ClientID,
			secret:     cfg.Credential.ClientSecret,
			scope:      cfg.Credential.Scope,
		}, nil
	case config.CredentialKindCertificate:
		cert, err := tls.LoadX509KeyPair(cfg.Credential.CertFile, cfg.Credential.CertKeyFile)
		if err != nil {
			return nil, fmt.Errorf("credentials: load certificate: %w", err)
		}
		transport := http.DefaultTransport.(*http.Transport).Clone()
		transport.TLSClientConfig = &tls.Config{Certificates: []tls.Certificate{cert}}
		return &clientSecretProvider{
			httpClient: &http.Client{Timeout: 30 * time.Second, Transport: transport},
			tokenURL:   cfg.Credential.TokenURL,
			clientID:   cfg.Credential.ClientID,
			scope:      cfg.Credential.Scope,
		}, nil
	default:
		return nil, fmt.Errorf("credentials: unknown credential kind %q", cfg.Credential.Kind)
	}
}

// clientSecretProvider performs the client-credentials grant against
// the configured token endpoint and caches the token until shortly
// before expiry. When no secret is set the request authenticates via
// the transport's client certificate instead.
type clientSecretProvider struct {
	httpClient *http.Client
	tokenURL   string
	clientID   string
	secret     string
	scope      string

	mu      sync.Mutex
	token   string
	expires time.Time
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
}

func (p *clientSecretProvider) Token(ctx context.Context) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.token != "" && time.Now().Before(p.expires) {
		return p.token, nil
	}

	form := url.Values{}
	form.Set("grant_type", "client_credentials")
	form.Set("client_id", p.clientID)
	if p.secret != "" {
		form.Set("client_secret", p.secret)
	}
	if p.scope != "" {
		form.Set("scope", p.scope)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("credentials: build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("credentials: token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("credentials: read token response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("credentials: token endpoint returned %d", resp.StatusCode)
	}

	var tr tokenResponse
	if err := json.Unmarshal(body, &tr); err != nil {
		return "", fmt.Errorf("credentials: decode token response: %w", err)
	}
	if tr.AccessToken == "" {
		return "", fmt.Errorf("credentials: token endpoint returned empty token")
	}

	p.token = tr.AccessToken
	// Refresh one minute early so in-flight calls never carry a token
	// that expires mid-request.
	p.expires = time.Now().Add(time.Duration(tr.ExpiresIn)*time.Second - time.Minute)
	return p.token, nil
}
