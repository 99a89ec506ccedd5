package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/vintifi/config"
	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/storage"
)

func main() {
	var userID, token, status string
	var ledger int

	flag.StringVar(&userID, "user", "", "Read this user's listings straight from the local database")
	flag.StringVar(&token, "token", os.Getenv("VINTIFI_TOKEN"), "Bearer token for the backend")
	flag.StringVar(&status, "status", "", "Filter: draft, ready, listed, sold")
	flag.IntVar(&ledger, "ledger", 0, "With -user, also show this many credit ledger entries")
	flag.Parse()

	if userID == "" && flag.NArg() > 0 {
		userID = flag.Arg(0)
	}

	config.LoadEnvFile()
	cfg := config.Load()

	var listings []adapter.Listing
	var err error
	if userID != "" {
		listings, err = fromDatabase(cfg, userID, ledger)
	} else {
		ctx, cancel := context.WithTimeout(adapter.WithToken(context.Background(), token), 30*time.Second)
		defer cancel()
		listings, err = adapter.NewClient(adapter.ClientOpts{BaseURL: cfg.BackendURL}).ListListings(ctx)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	shown := 0
	for _, l := range listings {
		if status != "" && l.Status != status {
			continue
		}
		shown++
		fmt.Printf("ID: %s\n", l.ID)
		fmt.Printf("  Title: %s\n", l.Title)
		if l.Price != nil {
			fmt.Printf("  Price: £%.2f\n", *l.Price)
		}
		fmt.Printf("  Status: %s\n", l.Status)
		fmt.Printf("  Photos: %d\n", len(l.Photos))
		fmt.Printf("  Updated: %s\n", l.UpdatedAt.Local().Format(time.DateTime))
		fmt.Println()
	}
	if shown == 0 {
		fmt.Println("No listings found")
	}
}

func fromDatabase(cfg config.Config, userID string, ledger int) ([]adapter.Listing, error) {
	if cfg.SecretKey == "" {
		return nil, fmt.Errorf("VINTIFI_SECRET_KEY not set")
	}
	key, err := storage.DeriveKey(cfg.SecretKey)
	if err != nil {
		return nil, fmt.Errorf("derive encryption key: %w", err)
	}
	store, err := storage.NewSQLiteStore(cfg.DBPath, key)
	if err != nil {
		return nil, fmt.Errorf("open database at %s: %w", cfg.DBPath, err)
	}
	defer store.Close()

	profile, err := store.GetProfile(userID)
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, fmt.Errorf("no profile for user %s", userID)
	}
	fmt.Printf("User: %s (%s, %d credits)\n\n", profile.UserID, profile.SubscriptionTier, profile.CreditsBalance)

	if ledger > 0 {
		entries, err := store.Ledger(userID, ledger)
		if err != nil {
			return nil, err
		}
		fmt.Println("Credit ledger:")
		for _, e := range entries {
			fmt.Printf("  %s  %+4d  %-12s %s\n", e.CreatedAt.Local().Format(time.DateTime), e.Delta, e.Operation, e.Description)
		}
		fmt.Println()
	}

	return store.ListListings(userID)
}
