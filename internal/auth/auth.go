// Package auth provides pluggable venue authentication for session handshakes.
package auth

import (
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"net/http"
	"os"
	"time"
)

// Authenticator produces handshake headers for a venue connection.
// Implementations must return fresh headers on every call: signed schemes
// embed a timestamp that expires, so every reconnect attempt re-signs.
type Authenticator interface {
	Headers(method, path string) (http.Header, error)
}

// -----------------------------------------------------------------------------
// Signed scheme (Kalshi): RSA-PSS over timestamp + method + path
// -----------------------------------------------------------------------------

// Credentials holds the key ID and private key for the signed scheme.
type Credentials struct {
	KeyID      string          // API key ID from the venue dashboard
	PrivateKey *rsa.PrivateKey // RSA private key for signing
}

// LoadCredentials loads credentials from a key ID and private key file path.
func LoadCredentials(keyID, privateKeyPath string) (*Credentials, error) {
	if keyID == "" {
		return nil, fmt.Errorf("API key ID is required")
	}
	if privateKeyPath == "" {
		return nil, fmt.Errorf("private key path is required")
	}

	privateKey, err := LoadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("load private key: %w", err)
	}

	return &Credentials{
		KeyID:      keyID,
		PrivateKey: privateKey,
	}, nil
}

// LoadPrivateKey loads an RSA private key from a PEM file.
func LoadPrivateKey(path string) (*rsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key file: %w", err)
	}

	block, _ := pem.Decode(data)
	if block == nil {
		return nil, fmt.Errorf("failed to decode PEM block")
	}

	// Try PKCS#8 first (newer format)
	key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err == nil {
		rsaKey, ok := key.(*rsa.PrivateKey)
		if !ok {
			return nil, fmt.Errorf("key is not an RSA private key")
		}
		return rsaKey, nil
	}

	// Fall back to PKCS#1 (older format)
	rsaKey, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	return rsaKey, nil
}

// Headers generates signed authentication headers for a venue request.
// For WebSocket connections, method is "GET" and path is the handshake path.
func (c *Credentials) Headers(method, path string) (http.Header, error) {
	timestampMs := time.Now().UnixMilli()

	signature, err := c.generateSignature(timestampMs, method, path)
	if err != nil {
		return nil, err
	}

	header := http.Header{}
	header.Set("KALSHI-ACCESS-KEY", c.KeyID)
	header.Set("KALSHI-ACCESS-TIMESTAMP", fmt.Sprintf("%d", timestampMs))
	header.Set("KALSHI-ACCESS-SIGNATURE", signature)
	return header, nil
}

// generateSignature creates an RSA-PSS signature for the given request.
// Message format: timestamp_ms + method + path
func (c *Credentials) generateSignature(timestampMs int64, method, path string) (string, error) {
	message := fmt.Sprintf("%d%s%s", timestampMs, method, path)

	hashed := sha256.Sum256([]byte(message))

	signature, err := rsa.SignPSS(
		rand.Reader,
		c.PrivateKey,
		crypto.SHA256,
		hashed[:],
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		return "", fmt.Errorf("sign message: %w", err)
	}

	return base64.StdEncoding.EncodeToString(signature), nil
}

// -----------------------------------------------------------------------------
// Static scheme (Polygon-style): fixed API key as a bearer header
// -----------------------------------------------------------------------------

// StaticKey authenticates with a fixed API key passed as an Authorization
// header. The same headers are valid across reconnects.
type StaticKey struct {
	Key string
}

// Headers returns the bearer header for the static scheme. Method and path
// are ignored; nothing is signed.
func (s *StaticKey) Headers(method, path string) (http.Header, error) {
	if s.Key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	header := http.Header{}
	header.Set("Authorization", "Bearer "+s.Key)
	return header, nil
}
