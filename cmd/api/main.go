package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"teampay/internal/api"
	"teampay/internal/config"
	"teampay/internal/database"
	"teampay/internal/fees"
	"teampay/internal/store"
	"teampay/internal/transfer"
	"teampay/internal/webhook"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "", log.LstdFlags)

	policy, err := feePolicy(cfg.Fees)
	if err != nil {
		log.Fatalf("fee policy error: %v", err)
	}
	calc := fees.NewCalculator(policy, int32(cfg.Fees.CurrencyExponent))

	ctx := context.Background()

	var st store.TeamAccountStore
	if cfg.Database.URL == "" {
		logger.Printf("no database configured, using in-memory store")
		st = store.NewMemory()
	} else {
		if err := database.RunMigrations(cfg.Database.URL); err != nil {
			log.Fatalf("migrate error: %v", err)
		}
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			log.Fatalf("db error: %v", err)
		}
		defer pool.Close()
		st = store.NewPostgres(pool)
	}

	if cfg.Webhook.Secret == "" {
		logger.Printf("warning: webhook secret not configured, all deliveries will be rejected")
	}
	verifier := webhook.NewVerifier(cfg.Webhook.Secret, time.Duration(cfg.Webhook.ToleranceSeconds)*time.Second)
	processor := webhook.NewProcessor(st, webhook.LogNotifier{Logger: logger}, logger)
	builder := transfer.NewBuilder(st, calc)

	srv := api.NewServer(st, verifier, processor, builder, cfg.Server.AuthToken, logger)

	httpServer := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Printf("listening on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(ctxShutdown)
}

func feePolicy(cfg config.FeesConfig) (fees.Policy, error) {
	switch cfg.Policy {
	case "flat":
		amount, err := decimal.NewFromString(cfg.FlatAmount)
		if err != nil {
			return nil, fmt.Errorf("flat amount %q: %w", cfg.FlatAmount, err)
		}
		return fees.FlatFee{Amount: amount}, nil
	case "percent":
		rate, err := decimal.NewFromString(cfg.PercentRate)
		if err != nil {
			return nil, fmt.Errorf("percent rate %q: %w", cfg.PercentRate, err)
		}
		return fees.PercentFee{Rate: rate}, nil
	case "tiered":
		if len(cfg.Tiers) == 0 {
			return nil, errors.New("tiered fee policy requires fees.tiers")
		}
		tiers := make([]fees.Tier, 0, len(cfg.Tiers))
		for _, t := range cfg.Tiers {
			upTo := decimal.Zero
			if t.UpTo != "" {
				parsed, err := decimal.NewFromString(t.UpTo)
				if err != nil {
					return nil, fmt.Errorf("tier bound %q: %w", t.UpTo, err)
				}
				upTo = parsed
			}
			rate, err := decimal.NewFromString(t.Rate)
			if err != nil {
				return nil, fmt.Errorf("tier rate %q: %w", t.Rate, err)
			}
			tiers = append(tiers, fees.Tier{UpTo: upTo, Rate: rate})
		}
		return fees.TieredFee{Tiers: tiers}, nil
	default:
		return nil, fmt.Errorf("unknown fee policy %q", cfg.Policy)
	}
}
