// Package remote is a client for an HTTP+JSON key service exposing RSA and
// AES operations. It only speaks the wire protocol; no cryptography happens
// here beyond building an envelope.Cipher from a fetched AES key.
package remote

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/absfs/envelope"
)

// maxResponseSize bounds the body read from the key service
const maxResponseSize = 64 << 20

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Client talks to the key service
type Client struct {
	baseURL *url.URL
	apiKey  string
	http    *http.Client
	logger  *zap.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the default http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithLogger sets the logger used for request tracing
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// New creates a client for the service at cfg.BaseURL
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	u, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("%w: BaseURL: %w", ErrInvalidConfig, err)
	}

	c := &Client{
		baseURL: u,
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Request bodies. The payload field is always sent, empty or not.
type rsaEncryptRequest struct {
	Plaintext string `json:"plaintext"`
}

type rsaDecryptRequest struct {
	Ciphertext string `json:"ciphertext"`
}

type aesEncryptRequest struct {
	Plaintext string `json:"plaintext"`
	Mode      string `json:"mode"`
}

type aesDecryptRequest struct {
	Ciphertext string `json:"ciphertext"`
	Mode       string `json:"mode"`
}

type textResponse struct {
	Plaintext  string `json:"plaintext,omitempty"`
	Ciphertext string `json:"ciphertext,omitempty"`
	PublicKey  string `json:"public_key,omitempty"`
	Key        string `json:"key,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// PublicKey fetches the service's RSA public key in PEM form
func (c *Client) PublicKey(ctx context.Context) (string, error) {
	var resp textResponse
	if err := c.do(ctx, http.MethodGet, "/rsa/public-key", nil, &resp); err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("%w: empty public key", ErrInvalidResponse)
	}
	return resp.PublicKey, nil
}

// RSAEncrypt asks the service to encrypt plaintext with its RSA key
func (c *Client) RSAEncrypt(ctx context.Context, plaintext string) (string, error) {
	var resp textResponse
	if err := c.do(ctx, http.MethodPost, "/rsa/encrypt", rsaEncryptRequest{Plaintext: plaintext}, &resp); err != nil {
		return "", err
	}
	return resp.Ciphertext, nil
}

// RSADecrypt asks the service to decrypt ciphertext with its RSA key
func (c *Client) RSADecrypt(ctx context.Context, ciphertext string) (string, error) {
	var resp textResponse
	if err := c.do(ctx, http.MethodPost, "/rsa/decrypt", rsaDecryptRequest{Ciphertext: ciphertext}, &resp); err != nil {
		return "", err
	}
	return resp.Plaintext, nil
}

// GenerateAESKey fetches a fresh 32-byte AES key from the service
func (c *Client) GenerateAESKey(ctx context.Context) ([]byte, error) {
	var resp textResponse
	if err := c.do(ctx, http.MethodGet, "/aes/key", nil, &resp); err != nil {
		return nil, err
	}

	key, err := base64.StdEncoding.DecodeString(resp.Key)
	if err != nil {
		return nil, fmt.Errorf("%w: key is not base64: %w", ErrInvalidResponse, err)
	}
	if len(key) != envelope.KeySize {
		return nil, fmt.Errorf("%w: key is %d bytes, want %d", ErrInvalidResponse, len(key), envelope.KeySize)
	}
	return key, nil
}

// AESEncrypt asks the service to encrypt plaintext under mode
func (c *Client) AESEncrypt(ctx context.Context, plaintext string, mode envelope.Mode) (string, error) {
	if err := envelope.ValidateMode(mode); err != nil {
		return "", err
	}

	var resp textResponse
	req := aesEncryptRequest{Plaintext: plaintext, Mode: mode.String()}
	if err := c.do(ctx, http.MethodPost, "/aes/encrypt", req, &resp); err != nil {
		return "", err
	}
	return resp.Ciphertext, nil
}

// AESDecrypt asks the service to decrypt ciphertext under mode
func (c *Client) AESDecrypt(ctx context.Context, ciphertext string, mode envelope.Mode) (string, error) {
	if err := envelope.ValidateMode(mode); err != nil {
		return "", err
	}

	var resp textResponse
	req := aesDecryptRequest{Ciphertext: ciphertext, Mode: mode.String()}
	if err := c.do(ctx, http.MethodPost, "/aes/decrypt", req, &resp); err != nil {
		return "", err
	}
	return resp.Plaintext, nil
}

// NewCipher fetches an AES key from the service and builds a local cipher
// for mode around it
func (c *Client) NewCipher(ctx context.Context, mode envelope.Mode) (*envelope.Cipher, error) {
	key, err := c.GenerateAESKey(ctx)
	if err != nil {
		return nil, err
	}
	return envelope.NewWithKey(key, mode)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.JoinPath(path).String(), body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("key service request failed",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
	}

	c.logger.Debug("key service request",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(data)),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Method: method, Path: path, StatusCode: resp.StatusCode}
		var er errorResponse
		if json.Unmarshal(data, &er) == nil && er.Error != "" {
			apiErr.Message = er.Error
		} else {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: %s %s: %w", ErrInvalidResponse, method, path, err)
	}
	return nil
}
