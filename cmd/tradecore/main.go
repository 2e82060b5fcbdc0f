// Command tradecore is the single entrypoint for the wallet-custody and
// trade-execution core: it loads configuration, bootstraps the server
// encryption secret (optionally unwrapping it from KMS), wires the
// repository, arm-session manager, signer resolver, risk gate, quote
// client, chain client, and metrics sink together into a Trade Executor,
// and serves Prometheus metrics until a shutdown signal arrives.
package main

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/awnumar/memguard"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/caesar-terminal/caesar/internal/armsession"
	"github.com/caesar-terminal/caesar/internal/config"
	"github.com/caesar-terminal/caesar/internal/engine"
	"github.com/caesar-terminal/caesar/internal/executor"
	"github.com/caesar-terminal/caesar/internal/fifo"
	"github.com/caesar-terminal/caesar/internal/httpclient"
	"github.com/caesar-terminal/caesar/internal/kms"
	"github.com/caesar-terminal/caesar/internal/metrics"
	"github.com/caesar-terminal/caesar/internal/oracle"
	"github.com/caesar-terminal/caesar/internal/quote"
	"github.com/caesar-terminal/caesar/internal/repository"
	"github.com/caesar-terminal/caesar/internal/repository/postgres"
	"github.com/caesar-terminal/caesar/internal/repository/redisidem"
	"github.com/caesar-terminal/caesar/internal/risk"
	"github.com/caesar-terminal/caesar/internal/signer"
	"github.com/caesar-terminal/caesar/internal/txchain"
)

func main() {
	defer memguard.Purge()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("tradecore starting (env=%s)\n", cfg.Env)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	serverSecret, err := resolveServerSecret(ctx, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to resolve server secret: %v\n", err)
		os.Exit(1)
	}

	pool, err := pgxpool.New(ctx, cfg.DB.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	repo := postgres.Open(pool)
	repo.Idempotency = redisidem.New(redisClient, "tradecore:idem:")

	log := slog.New(slog.NewTextHandler(os.Stdout, nil))

	sessions := armsession.New(cfg.ArmSession.SweepInterval, log)
	defer sessions.Shutdown(context.Background())

	signerResolver := signer.New(repo.Wallets, sessions, func() (string, bool) {
		return serverSecret, serverSecret != ""
	})

	hub := oracle.NewHub(log)

	if cfg.Oracle.OverviewBaseURL != "" {
		overviewClient := httpclient.New(httpclient.BreakerConfig{
			FailureThreshold:         cfg.CircuitBreaker.FailureThreshold,
			Cooldown:                 cfg.CircuitBreaker.Cooldown,
			HalfOpenSuccessThreshold: cfg.CircuitBreaker.HalfOpenSuccessThreshold,
		}, nil, log)
		poller := oracle.NewPoller(
			overviewClient,
			cfg.Oracle.PollInterval,
			openMintWatchlist(ctx, repo),
			oracle.OverviewFetch(cfg.Oracle.OverviewBaseURL),
			"overview",
			log,
		)
		hub.Register(poller)
		go poller.Run(ctx)
	}
	go hub.Run(ctx)

	riskCallbacks := oracle.NewRiskCallbacks(hub, cfg.Oracle.SnapshotMaxAge)

	riskCfg := risk.Config{
		MaxHolderPercent: cfg.Risk.MaxHolderPercent,
		MinLPBurnPercent: cfg.Risk.MinLpBurnPercent,
		EnableInsider:    cfg.Risk.EnableInsiderHeuristics,
		MinPumpPercent:   cfg.Risk.MinPumpPercent,
		MinVolumeUSD:     cfg.Risk.MinVolumeUSD,
		Blacklist:        toSet(cfg.Risk.Blacklist),
		Whitelist:        toSet(cfg.Risk.Whitelist),

		FetchOverview:       riskCallbacks.FetchOverview,
		HolderConcentration: riskCallbacks.HolderConcentration,
		LPBurnPercent:       riskCallbacks.LPBurnPercent,
		InsiderFlagged:      riskCallbacks.InsiderFlagged,
	}

	quoteClient := quote.New(cfg.Quote.BaseURL, cfg.HTTPClient.Timeout)
	chainClient := txchain.New(cfg.Solana.RPCEndpoint, "")
	closer := fifo.New(repo, nil)
	sink := metrics.New(nil)
	validator := engine.NewValidator(nil, engine.DefaultConstraints)

	ex := executor.New(executor.Config{
		Risk:        riskCfg,
		Quote:       quoteClient,
		Signer:      signerResolver,
		Builder:     chainClient,
		Submitter:   chainClient,
		Repo:        repo,
		Observer:    sink,
		Closer:      closer,
		Validator:   validator,
		RetryPolicy: executor.RetryPolicy{Max: 3},
	})
	_ = ex // wired and ready; served to callers via the (out-of-scope) API boundary.

	go func() {
		if err := sink.ServeHTTP(ctx, cfg.Metrics.ListenAddr); err != nil && ctx.Err() == nil {
			fmt.Fprintf(os.Stderr, "metrics server error: %v\n", err)
		}
	}()

	fmt.Printf("tradecore ready — metrics on %s\n", cfg.Metrics.ListenAddr)

	<-ctx.Done()
	fmt.Println("tradecore shutting down")
}

// resolveServerSecret implements the KMS-wrapped server secret bootstrap
// (SPEC_FULL.md §3): when a KMS key ID is configured, the server secret
// env var is treated as a base64 KMS ciphertext blob and unwrapped once
// at startup; otherwise the env var is used directly, per spec §4.2.
func resolveServerSecret(ctx context.Context, cfg *config.Config) (string, error) {
	raw := os.Getenv(cfg.Crypto.ServerSecretEnv)
	if raw == "" {
		return "", nil
	}
	if cfg.Signer.KMSKeyID == "" {
		return raw, nil
	}

	ciphertext, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", fmt.Errorf("tradecore: %s is not valid base64 KMS ciphertext: %w", cfg.Crypto.ServerSecretEnv, err)
	}

	client, err := kms.New(ctx, cfg.Signer.AWSRegion, cfg.LocalStackEndpoint)
	if err != nil {
		return "", fmt.Errorf("tradecore: build kms client: %w", err)
	}

	plaintext, err := client.Decrypt(ctx, ciphertext)
	if err != nil {
		return "", fmt.Errorf("tradecore: kms decrypt server secret: %w", err)
	}
	return string(plaintext), nil
}

// openMintWatchlist returns a func suitable for oracle.NewPoller's mints
// argument: the distinct set of mints with an open trade, queried fresh
// on every call so the watch list tracks positions as they open and
// close. A query error yields an empty tick rather than killing the
// poller — a transient DB hiccup shouldn't stop polling mints the next
// tick still needs.
func openMintWatchlist(ctx context.Context, repo repository.Repository) func() []string {
	return func() []string {
		rows, err := repo.Trades.FindOpen(ctx, repository.TradeFilter{})
		if err != nil {
			return nil
		}
		seen := make(map[string]bool, len(rows))
		var mints []string
		for _, r := range rows {
			if seen[r.Mint] {
				continue
			}
			seen[r.Mint] = true
			mints = append(mints, r.Mint)
		}
		return mints
	}
}

func toSet(values []string) map[string]bool {
	out := make(map[string]bool, len(values))
	for _, v := range values {
		out[v] = true
	}
	return out
}
