package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/midtrans/midtrans-go"
	"github.com/midtrans/midtrans-go/coreapi"
	"github.com/midtrans/midtrans-go/snap"

	"ms-booking/internal/config"
	"ms-booking/internal/logger"
	"ms-booking/internal/models"
)

// ErrServerKeyMissing means the service was started without gateway
// credentials. Purchase and reconciliation calls fail fast instead of
// sending unauthenticated requests.
var ErrServerKeyMissing = errors.New("gateway server key not configured")

// Client talks to Midtrans through the official SDK: Snap for opening
// payable sessions, Core API for the authoritative status query. The key
// prefix decides sandbox versus production before this client is built.
type Client struct {
	snap   snap.Client
	core   coreapi.Client
	hasKey bool
	log    *logger.Logger
}

func NewClient(cfg config.GatewayConfig, log *logger.Logger) *Client {
	env := midtrans.Sandbox
	mode := "sandbox"
	if cfg.IsProduction {
		env = midtrans.Production
		mode = "production"
	}

	// One timeout-bounded HTTP client for both SDK surfaces. A hung
	// gateway surfaces as a recoverable error, never a stuck request.
	httpClient := &midtrans.HttpClientImplementation{
		HttpClient: &http.Client{Timeout: cfg.QueryTimeout},
		Logger:     midtrans.GetDefaultLogger(env),
	}

	c := &Client{hasKey: cfg.ServerKey != "", log: log}
	c.snap.New(cfg.ServerKey, env)
	c.snap.HttpClient = httpClient
	c.core.New(cfg.ServerKey, env)
	c.core.HttpClient = httpClient

	log.Info("GATEWAY", fmt.Sprintf("midtrans client ready in %s mode", mode))
	return c
}

// CreateSession opens a Snap transaction for one order and returns the
// token the frontend needs to show the payment popup.
func (c *Client) CreateSession(ctx context.Context, req models.SessionRequest) (*models.Session, error) {
	if !c.hasKey {
		return nil, ErrServerKeyMissing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, snapErr := c.snap.CreateTransaction(&snap.Request{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:  req.OrderRef,
			GrossAmt: req.GrossAmount,
		},
		CreditCard: &snap.CreditCardDetails{Secure: true},
		CustomerDetail: &midtrans.CustomerDetails{
			FName: req.CustomerName,
			Email: req.CustomerEmail,
			Phone: req.CustomerPhone,
		},
		Items: &[]midtrans.ItemDetails{{
			ID:    req.OrderRef,
			Price: req.GrossAmount,
			Qty:   1,
			Name:  req.ItemName,
		}},
	})
	if snapErr != nil {
		c.log.LogGateway("SESSION", req.OrderRef, fmt.Sprintf("snap transaction failed: %v", snapErr))
		return nil, fmt.Errorf("create snap transaction for %s: %w", req.OrderRef, snapErr)
	}
	if resp.Token == "" {
		return nil, fmt.Errorf("snap transaction for %s returned no token", req.OrderRef)
	}

	c.log.LogGateway("SESSION", req.OrderRef, "snap transaction created")
	return &models.Session{Token: resp.Token, RedirectURL: resp.RedirectURL}, nil
}

// QueryStatus fetches the gateway's authoritative view of one order.
// Pushed webhook bodies are never trusted; this call is the source of
// truth for both the push and the pull path.
func (c *Client) QueryStatus(ctx context.Context, orderRef string) (*models.TransactionStatus, error) {
	if !c.hasKey {
		return nil, ErrServerKeyMissing
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, coreErr := c.core.CheckTransaction(orderRef)
	if coreErr != nil {
		c.log.LogGateway("STATUS", orderRef, fmt.Sprintf("status query failed: %v", coreErr))
		return nil, fmt.Errorf("check transaction %s: %w", orderRef, coreErr)
	}

	c.log.LogGateway("STATUS", orderRef, fmt.Sprintf("gateway reports %s/%s", resp.TransactionStatus, resp.FraudStatus))
	return &models.TransactionStatus{
		OrderRef:          resp.OrderID,
		TransactionStatus: resp.TransactionStatus,
		FraudStatus:       resp.FraudStatus,
	}, nil
}
