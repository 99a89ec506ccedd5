package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/raine/vintifi/config"
	"github.com/raine/vintifi/internal/adapter"
)

func main() {
	listingID := flag.String("id", "", "Listing ID to fetch")
	token := flag.String("token", os.Getenv("VINTIFI_TOKEN"), "Bearer token for the backend")
	rawJSON := flag.Bool("json", false, "Output raw JSON only")
	flag.Parse()

	// Also accept the ID as a positional argument
	if *listingID == "" && flag.NArg() > 0 {
		*listingID = flag.Arg(0)
	}
	if *listingID == "" {
		fmt.Fprintf(os.Stderr, "Usage: get-listing [-json] <listing_id>\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()
	client := adapter.NewClient(adapter.ClientOpts{BaseURL: cfg.BackendURL})

	ctx, cancel := context.WithTimeout(adapter.WithToken(context.Background(), *token), 30*time.Second)
	defer cancel()

	listing, err := client.GetListing(ctx, *listingID)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error fetching listing: %v\n", err)
		os.Exit(1)
	}
	if listing == nil {
		fmt.Fprintf(os.Stderr, "Listing %s not found\n", *listingID)
		os.Exit(1)
	}

	if *rawJSON {
		jsonBytes, _ := json.MarshalIndent(listing, "", "  ")
		fmt.Println(string(jsonBytes))
		return
	}

	fmt.Printf("=== Listing %s ===\n", listing.ID)
	fmt.Printf("Title:       %s\n", listing.Title)
	fmt.Printf("Brand:       %s\n", listing.Brand)
	fmt.Printf("Category:    %s\n", listing.Category)
	fmt.Printf("Size:        %s\n", listing.Size)
	fmt.Printf("Condition:   %s\n", listing.Condition)
	fmt.Printf("Colour:      %s\n", listing.Colour)
	fmt.Printf("Status:      %s\n", listing.Status)
	if listing.Price != nil {
		fmt.Printf("Price:       £%.2f\n", *listing.Price)
	}
	if listing.PriceLow != nil && listing.PriceHigh != nil {
		fmt.Printf("Range:       £%.2f - £%.2f (%s)\n", *listing.PriceLow, *listing.PriceHigh, listing.PriceStrategy)
	}
	if len(listing.Hashtags) > 0 {
		fmt.Printf("Hashtags:    %s\n", strings.Join(listing.Hashtags, " "))
	}
	if listing.SourceURL != "" {
		fmt.Printf("Imported:    %s\n", listing.SourceURL)
	}
	fmt.Printf("Updated:     %s\n", listing.UpdatedAt.Local().Format(time.DateTime))

	fmt.Printf("\n=== Photos (%d) ===\n", len(listing.Photos))
	for i, p := range listing.Photos {
		fmt.Printf("  %d. %s\n", i+1, p)
	}

	fmt.Println("\n=== Description ===")
	fmt.Println(listing.Description)
}
