package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/i474232898/farm-weather/internal/weather"
)

// RemoteVerifier asks the identity service who owns a token via GET {base}/user.
type RemoteVerifier struct {
	client  *http.Client
	baseURL string
	apiKey  string
}

func NewRemoteVerifier(client *http.Client, baseURL, apiKey string) (*RemoteVerifier, error) {
	if baseURL == "" {
		return nil, errors.New("auth url is empty")
	}
	if client == nil {
		client = &http.Client{Timeout: 5 * time.Second}
	}
	return &RemoteVerifier{client: client, baseURL: strings.TrimRight(baseURL, "/"), apiKey: apiKey}, nil
}

type remoteUser struct {
	ID string `json:"id"`
}

func (v *RemoteVerifier) Verify(ctx context.Context, token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", weather.ErrInvalidCredential
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.baseURL+"/user", nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if v.apiKey != "" {
		req.Header.Set("apikey", v.apiKey)
	}

	resp, err := v.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity service request failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", weather.ErrInvalidCredential
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return "", fmt.Errorf("identity service status %d", resp.StatusCode)
	}

	var user remoteUser
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("identity service decode: %w", err)
	}
	if strings.TrimSpace(user.ID) == "" {
		return "", weather.ErrInvalidCredential
	}
	return user.ID, nil
}
