// Package settlement is the boundary to the external prize settlement
// collaborator. The core hands over final rankings and prize shares; actually
// crediting wallets happens elsewhere.
package settlement

import (
	"bytes"
	"encoding/json"
	"log"
	"net/http"
	"time"

	"qron/internal/game"
)

// LogSettler records settlements in the process log. Default when no webhook
// endpoint is configured.
type LogSettler struct{}

// Settle logs the paid ranks.
func (LogSettler) Settle(result game.MatchEndPayload) {
	for _, r := range result.Rankings {
		if r.Prize <= 0 {
			break
		}
		log.Printf("💰 Settlement %s: rank %d %s (%s) -> %.4f", result.MatchID, r.Rank, r.Name, r.Wallet, r.Prize)
	}
}

// WebhookSettler POSTs the match-end payload to an external endpoint. One
// attempt, no retry: every settlement is also in the audit log, and the
// collaborator reconciles from there.
type WebhookSettler struct {
	url    string
	client *http.Client
}

// NewWebhookSettler creates a settler posting to the given URL.
func NewWebhookSettler(url string) *WebhookSettler {
	return &WebhookSettler{
		url:    url,
		client: &http.Client{Timeout: 5 * time.Second},
	}
}

// Settle delivers the payload.
func (w *WebhookSettler) Settle(result game.MatchEndPayload) {
	body, err := json.Marshal(result)
	if err != nil {
		log.Printf("⚠️ Settlement marshal failed for match %s: %v", result.MatchID, err)
		return
	}
	resp, err := w.client.Post(w.url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("⚠️ Settlement delivery failed for match %s: %v", result.MatchID, err)
		return
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		log.Printf("⚠️ Settlement endpoint returned %d for match %s", resp.StatusCode, result.MatchID)
		return
	}
	log.Printf("💸 Settlement delivered for match %s (%d ranks)", result.MatchID, len(result.Rankings))
}

// FromEnv picks the webhook settler when a URL is configured, otherwise the
// log settler.
func FromEnv(url string) game.Settler {
	if url != "" {
		return NewWebhookSettler(url)
	}
	return LogSettler{}
}
