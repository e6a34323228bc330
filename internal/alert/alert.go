// Package alert sends webhook notifications when a tracked keyword's rank
// deteriorates. Only keywords with alerts enabled are evaluated.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/nplace/tracker/internal/model"
)

// Type identifies the kind of alert.
type Type string

const (
	TypeRankDrop Type = "rank_drop"
	TypeUnranked Type = "unranked"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      Type           `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Config configures alert delivery.
type Config struct {
	WebhookURL string
	// DropThreshold is the minimum number of positions a rank must fall,
	// between consecutive snapshots, to trigger a rank_drop alert.
	DropThreshold int
}

// Notifier compares consecutive snapshots for alert-enabled keywords and
// delivers alerts via webhook.
type Notifier struct {
	cfg    Config
	client *http.Client
}

// New creates a Notifier with the given config.
func New(cfg Config) *Notifier {
	if cfg.DropThreshold < 1 {
		cfg.DropThreshold = 1
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate compares a keyword's latest snapshot against the previous one and
// returns any alerts. prev may be nil on the first collection.
func (n *Notifier) Evaluate(kw model.TrackedKeyword, storeName string, latest, prev *model.RankingSnapshot) []Alert {
	if !kw.AlertEnabled || latest == nil || prev == nil {
		return nil
	}

	now := time.Now().UTC()
	var alerts []Alert

	// A previously ranked store falling out of the results entirely.
	if prev.RankPosition != nil && latest.RankPosition == nil {
		alerts = append(alerts, Alert{
			Type:     TypeUnranked,
			Severity: "high",
			Message: fmt.Sprintf(
				"%s is no longer ranked for %q (was #%d)",
				storeName, kw.Keyword, *prev.RankPosition,
			),
			Details: map[string]any{
				"keyword_id": kw.ID,
				"keyword":    kw.Keyword,
				"prev_rank":  *prev.RankPosition,
			},
			Timestamp: now,
		})
		return alerts
	}

	if prev.RankPosition != nil && latest.RankPosition != nil {
		drop := *latest.RankPosition - *prev.RankPosition
		if drop >= n.cfg.DropThreshold {
			alerts = append(alerts, Alert{
				Type:     TypeRankDrop,
				Severity: "medium",
				Message: fmt.Sprintf(
					"%s dropped %d spot(s) for %q (#%d -> #%d)",
					storeName, drop, kw.Keyword, *prev.RankPosition, *latest.RankPosition,
				),
				Details: map[string]any{
					"keyword_id":  kw.ID,
					"keyword":     kw.Keyword,
					"prev_rank":   *prev.RankPosition,
					"latest_rank": *latest.RankPosition,
					"drop":        drop,
				},
				Timestamp: now,
			})
		}
	}

	return alerts
}

// Send delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (n *Notifier) Send(ctx context.Context, alerts []Alert) int {
	if n.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, a := range alerts {
		if err := n.sendWebhook(ctx, a); err != nil {
			zap.L().Error("alert: failed to send",
				zap.String("type", string(a.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("alert: sent",
			zap.String("type", string(a.Type)),
			zap.String("severity", a.Severity),
		)
		sent++
	}
	return sent
}

// sendWebhook posts a single alert to the webhook URL.
func (n *Notifier) sendWebhook(ctx context.Context, a Alert) error {
	payload, err := json.Marshal(a)
	if err != nil {
		return eris.Wrap(err, "alert: marshal")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "alert: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "alert: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("alert: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
