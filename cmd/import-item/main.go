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
	"github.com/raine/vintifi/internal/firecrawl"
	"github.com/raine/vintifi/internal/importer"
	"github.com/raine/vintifi/internal/llm"
)

func main() {
	itemURL := flag.String("url", "", "Vinted listing URL")
	token := flag.String("token", os.Getenv("VINTIFI_TOKEN"), "Bearer token for the backend")
	local := flag.Bool("local", false, "Import in process instead of calling the backend")
	rawJSON := flag.Bool("json", false, "Output raw JSON only")
	flag.Parse()

	if *itemURL == "" && flag.NArg() > 0 {
		*itemURL = flag.Arg(0)
	}
	if *itemURL == "" {
		fmt.Fprintf(os.Stderr, "Usage: import-item [-local] [-json] <vinted-url>\n")
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var item *adapter.ImportedItem
	var err error
	if *local {
		item, err = importLocal(ctx, cfg, *itemURL)
	} else {
		client := adapter.NewClient(adapter.ClientOpts{BaseURL: cfg.BackendURL})
		item, err = client.ImportListing(adapter.WithToken(ctx, *token), *itemURL)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if *rawJSON {
		jsonBytes, _ := json.MarshalIndent(item, "", "  ")
		fmt.Println(string(jsonBytes))
		return
	}

	fmt.Printf("Title:     %s\n", item.Title)
	fmt.Printf("Brand:     %s\n", item.Brand)
	fmt.Printf("Category:  %s\n", item.Category)
	fmt.Printf("Size:      %s\n", item.Size)
	fmt.Printf("Condition: %s\n", item.Condition)
	fmt.Printf("Colour:    %s\n", item.Colour)
	if item.Price != nil {
		fmt.Printf("Price:     £%.2f\n", *item.Price)
	}
	fmt.Printf("Photos:    %d\n", len(item.Photos))
	for i, p := range item.Photos {
		fmt.Printf("  %d. %s\n", i+1, p)
	}
}

func importLocal(ctx context.Context, cfg config.Config, itemURL string) (*adapter.ImportedItem, error) {
	opts := importer.ServiceOpts{
		API:   importer.NewVintedClient(""),
		Pages: importer.NewPageReader(firecrawl.NewClient("", cfg.FirecrawlAPIKey)),
	}
	if cfg.GeminiAPIKey != "" {
		gemini, err := llm.NewGemini(ctx, llm.GeminiOpts{APIKey: cfg.GeminiAPIKey, BaseURL: cfg.GeminiBaseURL})
		if err != nil {
			return nil, err
		}
		opts.Extractor = gemini
	}
	return importer.NewService(opts).Import(ctx, itemURL)
}
