// Package staking fans an account's updated total multiplier out to the
// registered staking-token collaborators. Notification is synchronous and
// part of the completion batch: a collaborator failure aborts the whole
// batch, so collaborators never observe a multiplier the engine later
// rolled back.
package staking

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/questlabs/questledger/model"
	"go.uber.org/zap"
)

// Notifier delivers a multiplier update to one collaborator.
type Notifier interface {
	Notify(ctx context.Context, collab model.Collaborator, account string, multiplier int) error
}

// NotifierFunc adapts a plain function to the Notifier interface.
type NotifierFunc func(ctx context.Context, collab model.Collaborator, account string, multiplier int) error

func (f NotifierFunc) Notify(ctx context.Context, collab model.Collaborator, account string, multiplier int) error {
	return f(ctx, collab, account, multiplier)
}

// update is the webhook payload. Multiplier is the absolute total, so
// redelivery is idempotent on the collaborator side.
type update struct {
	Account    string `json:"account"`
	Multiplier int    `json:"multiplier"`
}

// WebhookNotifier POSTs multiplier updates to each collaborator's endpoint.
type WebhookNotifier struct {
	client *http.Client
	logger *zap.Logger
}

// NewWebhookNotifier creates a WebhookNotifier with the given per-call timeout.
func NewWebhookNotifier(timeout time.Duration, logger *zap.Logger) *WebhookNotifier {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookNotifier{
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

// Notify POSTs {"account", "multiplier"} to the collaborator endpoint and
// treats any non-2xx response as failure.
func (n *WebhookNotifier) Notify(ctx context.Context, collab model.Collaborator, account string, multiplier int) error {
	body, err := json.Marshal(update{Account: account, Multiplier: multiplier})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, collab.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("staking: collaborator %s: %w", collab.Name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("staking: collaborator %s: %w", collab.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("staking: collaborator %s returned %d", collab.Name, resp.StatusCode)
	}
	n.logger.Debug("multiplier propagated",
		zap.String("collaborator", collab.Name),
		zap.String("account", account),
		zap.Int("multiplier", multiplier))
	return nil
}
