package api

import (
	"context"
	"fmt"
)

// ExchangeStatusResponse from GET /exchange/status
type ExchangeStatusResponse struct {
	ExchangeActive      bool   `json:"exchange_active"`
	TradingActive       bool   `json:"trading_active"`
	EstimatedResumeTime string `json:"exchange_estimated_resume_time,omitempty"`
}

// BalanceResponse from GET /portfolio/balance (requires a signer).
type BalanceResponse struct {
	Balance int64 `json:"balance"` // cents
}

// GetExchangeStatus checks whether the exchange is up.
func (c *Client) GetExchangeStatus(ctx context.Context) (*ExchangeStatusResponse, error) {
	var resp ExchangeStatusResponse
	if err := c.get(ctx, "/exchange/status", nil, &resp); err != nil {
		return nil, fmt.Errorf("get exchange status: %w", err)
	}
	return &resp, nil
}

// GetBalance returns the account balance of the signing key.
func (c *Client) GetBalance(ctx context.Context) (*BalanceResponse, error) {
	if c.signer == nil {
		return nil, fmt.Errorf("get balance: credentials required")
	}
	var resp BalanceResponse
	if err := c.get(ctx, "/portfolio/balance", nil, &resp); err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	return &resp, nil
}
