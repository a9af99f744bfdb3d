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
	"os"
	"path/filepath"
	"strconv"
	"testing"
)

func TestCredentials_Headers(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{
		KeyID:      "test-key-id",
		PrivateKey: privateKey,
	}

	headers, err := creds.Headers("GET", "/trade-api/ws/v2")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}

	if got := headers.Get("KALSHI-ACCESS-KEY"); got != "test-key-id" {
		t.Errorf("KALSHI-ACCESS-KEY = %q, want %q", got, "test-key-id")
	}
	if headers.Get("KALSHI-ACCESS-TIMESTAMP") == "" {
		t.Error("KALSHI-ACCESS-TIMESTAMP is empty")
	}
	if headers.Get("KALSHI-ACCESS-SIGNATURE") == "" {
		t.Error("KALSHI-ACCESS-SIGNATURE is empty")
	}
}

func TestCredentials_SignatureVerifies(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{KeyID: "verify-key", PrivateKey: privateKey}

	headers, err := creds.Headers("GET", "/trade-api/ws/v2")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}

	ts, err := strconv.ParseInt(headers.Get("KALSHI-ACCESS-TIMESTAMP"), 10, 64)
	if err != nil {
		t.Fatalf("timestamp is not an integer: %v", err)
	}

	sig, err := base64.StdEncoding.DecodeString(headers.Get("KALSHI-ACCESS-SIGNATURE"))
	if err != nil {
		t.Fatalf("signature is not valid base64: %v", err)
	}

	message := fmt.Sprintf("%dGET/trade-api/ws/v2", ts)
	hashed := sha256.Sum256([]byte(message))

	err = rsa.VerifyPSS(
		&privateKey.PublicKey,
		crypto.SHA256,
		hashed[:],
		sig,
		&rsa.PSSOptions{SaltLength: rsa.PSSSaltLengthEqualsHash},
	)
	if err != nil {
		t.Errorf("signature does not verify: %v", err)
	}
}

func TestCredentials_FreshSignaturePerCall(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	creds := &Credentials{KeyID: "k", PrivateKey: privateKey}

	h1, err := creds.Headers("GET", "/ws")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}
	h2, err := creds.Headers("GET", "/ws")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}

	// RSA-PSS is randomized, so two signatures over the same message differ.
	if h1.Get("KALSHI-ACCESS-SIGNATURE") == h2.Get("KALSHI-ACCESS-SIGNATURE") {
		t.Error("expected fresh signature on every call")
	}
}

func TestLoadPrivateKey_PKCS8(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	der, err := x509.MarshalPKCS8PrivateKey(privateKey)
	if err != nil {
		t.Fatalf("failed to marshal key: %v", err)
	}

	pemData := pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: der})
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	loaded, err := LoadPrivateKey(path)
	if err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
	if loaded.N.Cmp(privateKey.N) != 0 {
		t.Error("loaded key does not match original")
	}
}

func TestLoadPrivateKey_PKCS1(t *testing.T) {
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("failed to generate test key: %v", err)
	}

	der := x509.MarshalPKCS1PrivateKey(privateKey)
	pemData := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: der})
	path := filepath.Join(t.TempDir(), "key.pem")
	if err := os.WriteFile(path, pemData, 0600); err != nil {
		t.Fatalf("failed to write key file: %v", err)
	}

	if _, err := LoadPrivateKey(path); err != nil {
		t.Fatalf("LoadPrivateKey failed: %v", err)
	}
}

func TestLoadPrivateKey_Missing(t *testing.T) {
	if _, err := LoadPrivateKey(filepath.Join(t.TempDir(), "nope.pem")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadCredentials_Validation(t *testing.T) {
	if _, err := LoadCredentials("", "some-path"); err == nil {
		t.Error("expected error for empty key ID")
	}
	if _, err := LoadCredentials("key", ""); err == nil {
		t.Error("expected error for empty key path")
	}
}

func TestStaticKey_Headers(t *testing.T) {
	s := &StaticKey{Key: "abc123"}

	headers, err := s.Headers("GET", "/stocks")
	if err != nil {
		t.Fatalf("Headers failed: %v", err)
	}
	if got := headers.Get("Authorization"); got != "Bearer abc123" {
		t.Errorf("Authorization = %q, want %q", got, "Bearer abc123")
	}
}

func TestStaticKey_EmptyKey(t *testing.T) {
	s := &StaticKey{}
	if _, err := s.Headers("GET", "/"); err == nil {
		t.Error("expected error for empty key")
	}
}
