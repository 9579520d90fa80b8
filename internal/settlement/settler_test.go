package settlement

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"qron/internal/game"
)

func sampleResult() game.MatchEndPayload {
	return game.MatchEndPayload{
		MatchID: "m-1",
		Mode:    "duel",
		Rankings: []game.RankingEntry{
			{Rank: 1, ParticipantID: "p1", Name: "alice", Wallet: "0xa", Prize: 0.90},
			{Rank: 2, ParticipantID: "p2", Name: "bob", Wallet: "0xb", Prize: 0},
		},
	}
}

func TestWebhookSettlerDeliversPayload(t *testing.T) {
	var got game.MatchEndPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s, want POST", r.Method)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	NewWebhookSettler(srv.URL).Settle(sampleResult())

	if got.MatchID != "m-1" || len(got.Rankings) != 2 {
		t.Fatalf("delivered payload = %+v", got)
	}
	if got.Rankings[0].Prize != 0.90 {
		t.Errorf("winner prize = %v, want 0.90", got.Rankings[0].Prize)
	}
}

func TestWebhookSettlerSurvivesEndpointFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	// Must not panic or retry; failures are reconciled from the audit log.
	NewWebhookSettler(srv.URL).Settle(sampleResult())

	// Unreachable endpoint is equally non-fatal.
	srv.Close()
	NewWebhookSettler(srv.URL).Settle(sampleResult())
}

func TestFromEnv(t *testing.T) {
	if _, ok := FromEnv("").(LogSettler); !ok {
		t.Error("empty URL should select the log settler")
	}
	if _, ok := FromEnv("http://localhost:9/settle").(*WebhookSettler); !ok {
		t.Error("configured URL should select the webhook settler")
	}
}
