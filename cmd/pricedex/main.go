package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"github.com/cognicore/pricedex/pkg/pricedex"
	"github.com/cognicore/pricedex/pkg/pricedex/config"
	"github.com/cognicore/pricedex/pkg/pricedex/fetch"
	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
	"github.com/cognicore/pricedex/pkg/pricedex/store/sqlite"
)

func main() {
	var (
		configPath = flag.String("config", "", "Config file (YAML)")
		datasetURL = flag.String("dataset", "", "Dataset URL (overrides config)")
		dbPath     = flag.String("db", "", "Database path (overrides config)")
		cacheDir   = flag.String("cache", "", "Dataset cache directory (overrides config)")
		query      = flag.String("q", "", "One-shot query (non-interactive mode)")
		doReset    = flag.Bool("reset", false, "Purge the store and dataset cache, then exit")
		offline    = flag.Bool("offline", false, "Skip the startup import, use previously stored data")
	)
	flag.Parse()

	// .env is optional; missing files are fine
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	if *datasetURL != "" {
		cfg.DatasetURL = *datasetURL
	}
	if *dbPath != "" {
		cfg.DatabasePath = *dbPath
	}
	if *cacheDir != "" {
		cfg.CacheDir = *cacheDir
	}
	if err := cfg.Validate(); err != nil {
		log.Fatal(err)
	}

	ctx := context.Background()

	engine, err := buildEngine(ctx, cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer engine.Close()

	if *doReset {
		if err := engine.Reset(ctx); err != nil {
			log.Fatal(err)
		}
		fmt.Println("Store and dataset cache purged.")
		return
	}

	if !*offline {
		runImport(ctx, engine)
	}

	// One-shot query mode
	if *query != "" {
		if err := executeQuery(ctx, engine, *query); err != nil {
			log.Fatal(err)
		}
		return
	}

	// Interactive mode
	fmt.Println("===========================================")
	fmt.Println("  Pricedex")
	fmt.Println("  Code or article lookup")
	fmt.Println("===========================================")
	fmt.Println()
	fmt.Println("Type a product code or article name (Ctrl+D to exit):")
	fmt.Println()

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if err := executeQuery(ctx, engine, input); err != nil {
			fmt.Println("Error:", err)
		}
	}

	fmt.Println("\nGoodbye!")
}

func buildEngine(ctx context.Context, cfg config.Config) (*pricedex.Engine, error) {
	logger := cfg.Logging.NewLogger(os.Stderr)

	st, err := sqlite.OpenSQLite(ctx, cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	fetcher := &fetch.Fetcher{
		URL:        cfg.DatasetURL,
		Cache:      &fetch.Cache{Dir: cfg.CacheDir},
		HTTPClient: http.DefaultClient,
		Logger:     logger,
		Progress:   consoleProgress{},
	}

	return pricedex.New(pricedex.Options{
		Store:    st,
		Fetcher:  fetcher,
		Logger:   &logger,
		Progress: consoleProgress{},
	}), nil
}

func runImport(ctx context.Context, engine *pricedex.Engine) {
	report, err := engine.ImportDataset(ctx)
	switch {
	case errors.Is(err, internalerr.ErrDatasetUnavailable):
		fmt.Println("Dataset unavailable; using previously imported data if any.")
	case errors.Is(err, internalerr.ErrDatasetEmpty):
		fmt.Println("Dataset is empty or its header was not recognized.")
	case err != nil:
		log.Fatal(err)
	default:
		fmt.Printf("Imported %d records (%s).\n", report.Count, report.Provenance)
	}
	fmt.Println()
}

func executeQuery(ctx context.Context, engine *pricedex.Engine, query string) error {
	rec, found, err := engine.Lookup(ctx, query)
	if err != nil {
		return err
	}
	if !found {
		fmt.Printf("No match for %q.\n\n", query)
		return nil
	}

	fmt.Printf("Code:        %s\n", rec.Code)
	fmt.Printf("Article:     %s\n", rec.Article)
	if rec.Description != "" {
		fmt.Printf("Description: %s\n", rec.Description)
	}
	fmt.Printf("Price:       %s\n", rec.Price)
	if rec.Department != "" {
		fmt.Printf("Department:  %s\n", rec.Department)
	}
	fmt.Println()
	return nil
}

// consoleProgress renders the three acquisition phases for the terminal
type consoleProgress struct{}

func (consoleProgress) CheckingCache()  { fmt.Println("Searching local cache...") }
func (consoleProgress) Downloading()    { fmt.Println("Downloading dataset...") }
func (consoleProgress) Importing(n int) { fmt.Printf("Importing %d records...\n", n) }
