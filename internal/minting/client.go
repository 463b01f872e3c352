package minting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
)

// Client calls the ticket minting service over HTTP. A mint is attempted
// exactly once per settled order; callers record the failure outcome
// instead of retrying here.
type Client struct {
	endpoint string
	timeout  time.Duration
	log      *logger.Logger

	initOnce sync.Once
	http     *http.Client
}

func NewClient(cfg config.MintingConfig, log *logger.Logger) *Client {
	return &Client{
		endpoint: cfg.RPCEndpoint,
		timeout:  cfg.CallTimeout,
		log:      log,
	}
}

func (c *Client) client() *http.Client {
	c.initOnce.Do(func() {
		c.http = &http.Client{Timeout: c.timeout}
	})
	return c.http
}

type mintRequest struct {
	Recipients []string `json:"recipients"`
	TokenURI   string   `json:"tokenURI"`
}

type mintResponse struct {
	TransactionHash string `json:"transactionHash"`
	Error           string `json:"error"`
}

// Mint issues a ticket token to the given recipient wallets and returns
// the resulting transaction hash.
func (c *Client) Mint(ctx context.Context, recipients []string, tokenURI string) (string, error) {
	if len(recipients) == 0 {
		return "", errors.New("mint: no recipient wallets")
	}

	body, err := json.Marshal(mintRequest{Recipients: recipients, TokenURI: tokenURI})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/mint", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.LogMint("-", fmt.Sprintf("submitting mint for %s", recipients[0]))

	resp, err := c.client().Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("mint call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("mint call: status %d: %s", resp.StatusCode, string(raw))
	}

	var out mintResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("mint response: %w", err)
	}
	if out.Error != "" {
		return "", errors.New(out.Error)
	}
	if out.TransactionHash == "" {
		return "", errors.New("mint response has no transaction hash")
	}
	return out.TransactionHash, nil
}
