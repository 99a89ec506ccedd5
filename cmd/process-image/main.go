package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/raine/vintifi/config"
	"github.com/raine/vintifi/internal/adapter"
	"github.com/raine/vintifi/internal/studio"
)

// paramFlags collects repeated -param key=value flags.
type paramFlags studio.Params

func (p paramFlags) String() string { return fmt.Sprint(map[string]string(p)) }

func (p paramFlags) Set(v string) error {
	key, value, ok := strings.Cut(v, "=")
	if !ok || key == "" {
		return fmt.Errorf("expected key=value, got %q", v)
	}
	p[key] = value
	return nil
}

func main() {
	params := paramFlags{}
	op := flag.String("op", string(studio.OpCleanBG), "Operation to run")
	token := flag.String("token", os.Getenv("VINTIFI_TOKEN"), "Bearer token for the backend")
	garment := flag.String("garment", "", "Garment description passed to the model")
	flag.Var(params, "param", "Operation parameter as key=value, repeatable")
	flag.Parse()

	if flag.NArg() < 1 {
		fmt.Fprintf(os.Stderr, "Usage: process-image [-op clean_bg] [-param k=v] <image_path_or_url>\n")
		fmt.Fprintf(os.Stderr, "Operations:")
		for _, o := range studio.Operations {
			fmt.Fprintf(os.Stderr, " %s", o)
		}
		fmt.Fprintln(os.Stderr)
		os.Exit(1)
	}
	operation := studio.Operation(*op)
	if !operation.Valid() {
		fmt.Fprintf(os.Stderr, "Error: unknown operation %q\n", *op)
		os.Exit(1)
	}

	config.LoadEnvFile()
	cfg := config.Load()
	client := adapter.NewClient(adapter.ClientOpts{BaseURL: cfg.BackendURL, Timeout: 3 * time.Minute})

	ctx, cancel := context.WithTimeout(adapter.WithToken(context.Background(), *token), 5*time.Minute)
	defer cancel()

	imageURL := flag.Arg(0)
	if !strings.HasPrefix(imageURL, "http://") && !strings.HasPrefix(imageURL, "https://") {
		data, err := os.ReadFile(imageURL)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error reading image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Uploading %s (%d bytes)...\n", imageURL, len(data))
		imageURL, err = client.UploadImage(ctx, filepath.Base(imageURL), data)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error uploading image: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Uploaded: %s\n", imageURL)
	}

	merged := studio.DefaultParams(operation)
	for k, v := range params {
		merged[k] = v
	}

	fmt.Printf("Running %s (%d credits)...\n", operation.Label(), studio.OperationCredits(operation))
	start := time.Now()
	res := client.ProcessImage(ctx, imageURL, operation, merged, studio.ProcessOptions{
		Source:         studio.SourceStudio,
		GarmentContext: *garment,
	})
	if !res.Success {
		fmt.Fprintf(os.Stderr, "Error: %s\n", res.Error)
		os.Exit(1)
	}
	fmt.Printf("Done in %s\n", time.Since(start).Round(time.Millisecond))
	fmt.Println(res.ImageURL)
}
