package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// resolveToken picks the API credential for this run. A personal token in
// GITHUB_TOKEN wins; otherwise GitHub App credentials mint a short-lived
// installation token. One token per invocation is enough: refract reviews a
// single repository per run.
func resolveToken(ctx context.Context, apiURL string, httpCli *http.Client, logger *zap.Logger) (string, error) {
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		return token, nil
	}

	appID := os.Getenv("GITHUB_APP_ID")
	instID := os.Getenv("GITHUB_APP_INSTALLATION_ID")
	if appID == "" || instID == "" {
		return "", errors.New("no GitHub credentials: set GITHUB_TOKEN, or GITHUB_APP_ID plus " +
			"GITHUB_APP_INSTALLATION_ID with GITHUB_APP_KEY or GITHUB_APP_KEY_PATH")
	}

	keyPEM, err := loadAppKey()
	if err != nil {
		return "", err
	}
	appJWT, err := generateAppJWT(appID, keyPEM)
	if err != nil {
		return "", fmt.Errorf("generating app JWT: %w", err)
	}
	token, err := installationToken(ctx, apiURL, httpCli, appJWT, instID)
	if err != nil {
		return "", err
	}
	logger.Debug("authenticated as GitHub App installation",
		zap.String("app_id", appID),
		zap.String("installation_id", instID))
	return token, nil
}

// loadAppKey reads the App private key from GITHUB_APP_KEY (PEM content) or
// GITHUB_APP_KEY_PATH (file).
func loadAppKey() ([]byte, error) {
	if key := os.Getenv("GITHUB_APP_KEY"); key != "" {
		return []byte(key), nil
	}
	path := os.Getenv("GITHUB_APP_KEY_PATH")
	if path == "" {
		return nil, errors.New("GitHub App auth needs GITHUB_APP_KEY (PEM content) or GITHUB_APP_KEY_PATH (file)")
	}
	key, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading app key file: %w", err)
	}
	return key, nil
}

// generateAppJWT signs a short-lived JWT as the GitHub App. GitHub caps App
// JWT lifetime at ten minutes.
func generateAppJWT(appID string, keyPEM []byte) (string, error) {
	block, _ := pem.Decode(keyPEM)
	if block == nil {
		return "", errors.New("app key is not PEM encoded")
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		parsed, err8 := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err8 != nil {
			return "", fmt.Errorf("parsing app key: %w", err)
		}
		rsaKey, ok := parsed.(*rsa.PrivateKey)
		if !ok {
			return "", errors.New("app key is not an RSA key")
		}
		key = rsaKey
	}

	now := time.Now()
	claims := jwt.MapClaims{
		"iat": now.Unix(),
		"exp": now.Add(10 * time.Minute).Unix(),
		"iss": appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
}

// installationToken exchanges an App JWT for an installation access token.
func installationToken(ctx context.Context, apiURL string, httpCli *http.Client, appJWT, instID string) (string, error) {
	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", apiURL, instID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, http.NoBody)
	if err != nil {
		return "", fmt.Errorf("creating token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github.v3+json")

	resp, err := httpCli.Do(req)
	if err != nil {
		return "", fmt.Errorf("requesting installation token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("creating installation token (status %d): %s", resp.StatusCode, string(body))
	}

	var tokenResp struct {
		Token     string    `json:"token"`
		ExpiresAt time.Time `json:"expires_at"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("decoding token response: %w", err)
	}
	if tokenResp.Token == "" {
		return "", errors.New("GitHub returned an empty installation token")
	}
	return tokenResp.Token, nil
}
