package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/raine/vintifi/config"
	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/pricing"
)

func main() {
	var req adapter.PriceCheckRequest
	flag.StringVar(&req.Brand, "brand", "", "Brand, e.g. Nike")
	flag.StringVar(&req.Title, "title", "", "Listing title")
	flag.StringVar(&req.Category, "category", "", "Category")
	flag.StringVar(&req.Condition, "condition", "", "Condition enum, e.g. very_good")
	flag.StringVar(&req.Size, "size", "", "Size")
	token := flag.String("token", os.Getenv("VINTIFI_TOKEN"), "Bearer token for the backend")
	dryRun := flag.Bool("dry-run", false, "Only print the search term and URL")
	rawJSON := flag.Bool("json", false, "Output raw JSON only")
	flag.Parse()

	if req.Brand == "" && req.Title == "" {
		fmt.Fprintf(os.Stderr, "Usage: price-check -brand <brand> -title <title> [-category c] [-condition c] [-size s]\n")
		os.Exit(1)
	}

	if *dryRun {
		fmt.Printf("Search term: %s\n", pricing.BuildSearchTerm(req.Brand, req.Category, req.Title))
		fmt.Printf("Search URL:  %s\n", pricing.BuildVintedURL(req.Brand, req.Category, req.Title, req.Condition))
		return
	}

	config.LoadEnvFile()
	cfg := config.Load()
	client := adapter.NewClient(adapter.ClientOpts{BaseURL: cfg.BackendURL})

	ctx, cancel := context.WithTimeout(adapter.WithToken(context.Background(), *token), 2*time.Minute)
	defer cancel()

	res, err := client.PriceCheck(ctx, req)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *rawJSON {
		jsonBytes, _ := json.MarshalIndent(res, "", "  ")
		fmt.Println(string(jsonBytes))
		return
	}

	fmt.Printf("Range:       £%.2f - £%.2f (median £%.2f)\n", res.PriceRange.Low, res.PriceRange.High, res.PriceRange.Median)
	fmt.Printf("Suggested:   £%.2f\n", res.SuggestedPrice)
	fmt.Printf("Confidence:  %d%%\n", res.Confidence)
	fmt.Printf("Comparables: %d\n", res.Comparables)
	if res.SearchURL != "" {
		fmt.Printf("Search URL:  %s\n", res.SearchURL)
	}
	if res.Insights != "" {
		fmt.Printf("\n%s\n", res.Insights)
	}
}
