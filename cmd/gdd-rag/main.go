package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"gdd-rag/internal/chromemdb"
	"gdd-rag/internal/chunker"
	"gdd-rag/internal/config"
	"gdd-rag/internal/embedding"
	"gdd-rag/internal/helper"
	"gdd-rag/internal/httpapi"
	"gdd-rag/internal/llmservice"
	"gdd-rag/internal/models"
	"gdd-rag/internal/rag"
	"gdd-rag/internal/session"
	"gdd-rag/internal/tui"
)

const configFilePath = "./configs/config.yaml"

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", configFilePath, "Path to the YAML config file")
	serve := flag.Bool("serve", false, "Run the HTTP API instead of the terminal UI")
	addr := flag.String("addr", "", "Listen address, overrides server.addr")
	query := flag.String("query", "", "Answer one question about the given files and exit")
	asJSON := flag.Bool("json", false, "Print the -query answer as JSON")
	samples := flag.Bool("samples", false, "Preload the bundled sample design documents")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "Usage: gdd-rag [flags] [files...]\n\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}

	interactive := !*serve && *query == ""
	closeLog, err := setupLogger(&cfg.Log, interactive)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening log file: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()

	sess, err := newSession(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Error initializing pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := preload(ctx, sess, flag.Args(), *samples); err != nil {
		log.Fatal().Err(err).Msg("Error loading documents")
	}

	switch {
	case *serve:
		if err := httpapi.NewServer(cfg.Server, sess).Start(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server failed")
		}
	case *query != "":
		if err := runQuery(ctx, sess, *query, *asJSON); err != nil {
			log.Error().Err(err).Msg("Query failed")
			os.Exit(1)
		}
	default:
		timeout := cfg.Embedder.Timeout + cfg.LLM.Timeout
		p := tea.NewProgram(tui.New(sess, timeout, cfg.Retrieval.TopK), tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
			log.Fatal().Err(err).Msg("Terminal UI failed")
		}
	}
}

// setupLogger configures the global zerolog logger. The terminal UI owns the
// screen, so interactive runs log to cfg.File instead of stderr.
func setupLogger(cfg *config.LogConfig, interactive bool) (func(), error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	var out io.Writer = os.Stderr
	closeFn := func() {}
	if interactive {
		f, err := os.OpenFile(cfg.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, err
		}
		out, closeFn = f, func() { _ = f.Close() }
	}

	if cfg.Format == "json" {
		log.Logger = zerolog.New(out).With().Timestamp().Caller().Logger()
	} else {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339, NoColor: interactive}).With().Caller().Logger()
	}
	return closeFn, nil
}

// newSession builds the embedder once and wires it through the index and
// generator. A missing LLM key is not fatal: retrieval still works and asks
// report the answer as unavailable.
func newSession(cfg *config.Config) (*session.Session, error) {
	ch, err := chunker.New(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	if err != nil {
		return nil, err
	}

	embedder, err := embedding.NewEmbedder(&cfg.Embedder)
	if err != nil {
		return nil, err
	}
	svc := embedding.NewService(embedder, cfg.Embedder.Timeout)

	var backend rag.Backend = rag.MemoryBackend{}
	if cfg.Retrieval.Backend == config.BackendChromem {
		backend = chromemdb.NewBackend(chromemdb.DefaultCollection)
	}
	index := rag.NewIndex(ch, svc, backend, cfg.Retrieval.MinSimilarity)

	var generator rag.Generator
	g, err := llmservice.NewGenerator(&cfg.LLM)
	if err != nil {
		log.Warn().Err(err).Msg("LLM unavailable, questions will return sources only")
	} else {
		generator = g
	}

	log.Info().
		Str("embedder", cfg.Embedder.Type).
		Str("backend", cfg.Retrieval.Backend).
		Int("chunk_size", ch.Size()).
		Int("overlap", ch.Overlap()).
		Int("top_k", cfg.Retrieval.TopK).
		Msg("Pipeline ready")
	return session.New(rag.NewRAG(index, generator, cfg.Retrieval.TopK)), nil
}

func preload(ctx context.Context, sess *session.Session, paths []string, samples bool) error {
	if samples {
		report, err := sess.LoadSamples(ctx)
		if err != nil {
			return err
		}
		log.Info().Strs("loaded", report.Loaded).Msg("Loaded sample documents")
	}
	if len(paths) == 0 {
		return nil
	}

	files, warnings := tui.ReadFiles(paths)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	if len(files) == 0 {
		return fmt.Errorf("%w: none of the given files could be read", models.ErrEmptyInput)
	}
	report, err := sess.Upload(ctx, files)
	if err != nil {
		return err
	}
	for _, w := range report.Warnings {
		log.Warn().Msg(w)
	}
	return nil
}

func runQuery(ctx context.Context, sess *session.Session, question string, asJSON bool) error {
	answer, err := sess.Ask(ctx, question)
	if asJSON && answer != nil {
		if perr := helper.PrettyPrint(os.Stdout, answer); perr != nil {
			return perr
		}
		return err
	}
	if answer != nil {
		fmt.Printf("Question:\n%s\n\n", question)
		fmt.Printf("Sources:\n")
		for i, r := range answer.Sources {
			fmt.Printf("  %d. %s (score %.3f)\n", i+1, r.Source, r.Score)
		}
		if answer.Answer != "" {
			fmt.Printf("\nAnswer:\n%s\n", answer.Answer)
		}
	}
	return err
}
