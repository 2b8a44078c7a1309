// Package trakteer клиент публичного API Trakteer для запроса последних транзакций.
package trakteer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/donation-bot/internal/config"
	"github.com/magabrotheeeer/donation-bot/internal/models"
)

// ErrNoTransactions API вернул пустой список транзакций.
var ErrNoTransactions = errors.New("no transactions")

// Client клиент Trakteer.
type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт новый клиент Trakteer.
func NewClient(cfg config.Trakteer) *Client {
	return &Client{
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// LastTransaction возвращает самую свежую поддержку.
func (c *Client) LastTransaction(ctx context.Context) (*models.Transaction, error) {
	const op = "trakteer.LastTransaction"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.apiURL+"/supports?limit=1&page=1", nil)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	req.Header.Set("key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}

	var payload models.LastTransactionPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if len(payload.Result.Data) == 0 {
		return nil, fmt.Errorf("%s: %w", op, ErrNoTransactions)
	}
	tx := payload.Result.Data[0]
	return &tx, nil
}
