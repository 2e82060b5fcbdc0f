package oracle_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/caesar-terminal/caesar/internal/httpclient"
	"github.com/caesar-terminal/caesar/internal/oracle"
)

func TestOverviewFetchAppliesSnapshotFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/overview/MINT1" {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"pumpPercent":42,"volumeUsd":1000,"holderPercent":6,"lpBurnPercent":95,"insiderFlagged":true}`))
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.DefaultBreakerConfig(), nil, nil)
	fetch := oracle.OverviewFetch(srv.URL)

	update, err := fetch(context.Background(), client, "MINT1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if update.Mint != "MINT1" || update.Source != "overview" {
		t.Fatalf("unexpected update metadata: %+v", update)
	}

	var snap oracle.Snapshot
	update.Apply(&snap)
	if snap.PumpPercent != 42 || snap.VolumeUSD != 1000 || snap.HolderPercent != 6 ||
		snap.LPBurnPercent != 95 || !snap.InsiderFlagged {
		t.Fatalf("unexpected snapshot: %+v", snap)
	}
}

func TestOverviewFetchPropagatesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := httpclient.New(httpclient.BreakerConfig{FailureThreshold: 5, Cooldown: 0, HalfOpenSuccessThreshold: 1}, nil, nil)
	fetch := oracle.OverviewFetch(srv.URL)

	if _, err := fetch(context.Background(), client, "MINT1"); err == nil {
		t.Fatal("expected an error for a 500 response")
	}
}
