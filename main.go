package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/fabfab/docs-agent/agent"
	"github.com/fabfab/docs-agent/chunker"
	"github.com/fabfab/docs-agent/config"
	"github.com/fabfab/docs-agent/embeddings"
	"github.com/fabfab/docs-agent/ingest"
	"github.com/fabfab/docs-agent/llm"
	"github.com/fabfab/docs-agent/scraper"
	"github.com/fabfab/docs-agent/store"
)

func main() {
	logger := log.New(os.Stdout, "", log.LstdFlags)

	scrape := flag.Bool("scrape", false, "scrape the documentation site and exit")
	seedURL := flag.String("url", "", "documentation seed URL (overrides DOCS_URL)")
	maxPages := flag.Int("max-pages", 50, "maximum number of pages to scrape")
	ingestCore := flag.Bool("ingest-core", false, "ingest the local source tree and exit")
	corePath := flag.String("core-path", "", "root directory for source ingestion (overrides CORE_PATH)")
	query := flag.String("query", "", "ask a single question and exit")
	provider := flag.String("provider", "", "completion provider: openai, groq, or ollama (overrides LLM_PROVIDER)")
	model := flag.String("model", "", "completion model (overrides the provider default)")
	dbPath := flag.String("db-path", "", "vector database directory (overrides DB_PATH)")
	storeBackend := flag.String("store", "", "vector store backend: chromem or postgres (overrides STORE_BACKEND)")
	flag.Parse()

	// Missing .env is fine; the environment may be set directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load configuration: %v", err)
	}
	if *seedURL != "" {
		cfg.DocsURL = *seedURL
	}
	if *corePath != "" {
		cfg.CorePath = *corePath
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}
	if *storeBackend != "" {
		cfg.Store = *storeBackend
	}
	if *provider != "" {
		cfg.LLM.Provider = *provider
	}
	if *model != "" {
		cfg.LLM.Model = *model
	}

	if err := cfg.Validate(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	ch, err := chunker.New(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		logger.Fatalf("chunker setup: %v", err)
	}

	embedder, err := embeddings.NewEmbedder(cfg, logger)
	if err != nil {
		logger.Fatalf("embedder setup: %v", err)
	}

	st, closeStore, err := newStore(ctx, cfg, embedder, logger)
	if err != nil {
		logger.Fatalf("vector store setup: %v", err)
	}
	defer closeStore()

	ranBatch := false

	if *scrape {
		scrapeCmd(ctx, cfg, ch, st, *maxPages, logger)
		ranBatch = true
	}
	if *ingestCore {
		ingestCmd(ctx, cfg, ch, st, logger)
		ranBatch = true
	}
	if ranBatch && *query == "" {
		printStats(ctx, st, logger)
		return
	}

	if err := cfg.ValidateCompletion(); err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	client, err := llm.NewClient(cfg)
	if err != nil {
		logger.Fatalf("completion client setup: %v", err)
	}

	a := agent.New(st, client, logger)
	session := agent.NewSession()

	if *query != "" {
		answer, err := a.Ask(ctx, session, *query)
		if err != nil {
			logger.Fatalf("query failed: %v", err)
		}
		fmt.Println(answer)
		return
	}

	interactive(ctx, a, session, st, logger)
}

func newStore(ctx context.Context, cfg config.Config, embedder embeddings.Embedder, logger *log.Logger) (store.Store, func(), error) {
	switch cfg.Store {
	case config.StorePostgres:
		pg, err := store.NewPostgresStore(ctx, cfg.PostgresDSN, embedder, cfg.Embeddings.Dimension, logger)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	default:
		cs, err := store.NewChromemStore(cfg.DBPath, cfg.Collection, embedder, logger)
		if err != nil {
			return nil, nil, err
		}
		return cs, func() {}, nil
	}
}

func scrapeCmd(ctx context.Context, cfg config.Config, ch *chunker.Chunker, st store.Store, maxPages int, logger *log.Logger) {
	if cfg.DocsURL == "" {
		logger.Fatal("no documentation URL: set DOCS_URL or pass --url")
	}

	s, err := scraper.New(cfg.DocsURL, ch, cfg.ScrapeDelay, logger)
	if err != nil {
		logger.Fatalf("scraper setup: %v", err)
	}

	fetched, err := s.ScrapeDocumentation(ctx, maxPages, st)
	if err != nil {
		logger.Fatalf("scrape failed after %d pages: %v", fetched, err)
	}
}

func ingestCmd(ctx context.Context, cfg config.Config, ch *chunker.Chunker, st store.Store, logger *log.Logger) {
	svc := ingest.NewService(st, ch, logger)
	if _, err := svc.IngestDirectory(ctx, cfg.CorePath); err != nil {
		logger.Fatalf("ingest failed: %v", err)
	}
}

func printStats(ctx context.Context, st store.Store, logger *log.Logger) {
	stats, err := st.Stats(ctx)
	if err != nil {
		logger.Printf("stats unavailable: %v", err)
		return
	}
	fmt.Printf("Collection %q holds %d chunks.\n", stats.Collection, stats.TotalChunks)
}

func interactive(ctx context.Context, a *agent.Agent, session *agent.Session, st store.Store, logger *log.Logger) {
	fmt.Println("Documentation assistant. Ask a question, or use: clear, stats, quit.")

	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("\nYou: ")
		if !scanner.Scan() {
			break
		}
		if err := ctx.Err(); err != nil {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		switch strings.ToLower(input) {
		case "quit", "exit", "q":
			fmt.Println("Bye.")
			return
		case "clear":
			session.Clear()
			fmt.Println("Conversation history cleared.")
			continue
		case "stats":
			printStats(ctx, st, logger)
			continue
		}

		answer, err := a.Ask(ctx, session, input)
		if err != nil {
			logger.Printf("query failed: %v", err)
			continue
		}
		fmt.Printf("\nAssistant: %s\n", answer)
	}

	if err := scanner.Err(); err != nil {
		logger.Printf("read input: %v", err)
	}
}
