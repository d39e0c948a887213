// Command ismacodes runs the site backend: blog content API, PDF export,
// chat assistant, and the live price stream.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	_ "go.uber.org/automaxprocs"

	"github.com/ismaelpamplona/isma.codes/internal/api"
	"github.com/ismaelpamplona/isma.codes/internal/assistant"
	"github.com/ismaelpamplona/isma.codes/internal/config"
	"github.com/ismaelpamplona/isma.codes/internal/content"
	"github.com/ismaelpamplona/isma.codes/internal/logging"
	"github.com/ismaelpamplona/isma.codes/internal/markdown"
	"github.com/ismaelpamplona/isma.codes/internal/pdf"
	"github.com/ismaelpamplona/isma.codes/internal/ticker"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "ismacodes: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the YAML config file (empty = defaults)")
	addr := flag.String("addr", "", "listen address, overrides the config")
	flag.Parse()

	// Missing .env is fine; environment variables may come from elsewhere.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Content pipeline.
	loader := content.NewLoader(cfg.Content.Dir, log)
	posts := content.NewRepository(loader)
	renderer := markdown.NewRenderer()

	// PDF export.
	pdfOpts := []pdf.Option{pdf.WithTimeout(cfg.PDF.Timeout)}
	if cfg.PDF.StylesheetURL != "" {
		pdfOpts = append(pdfOpts, pdf.WithStylesheetURL(cfg.PDF.StylesheetURL))
	}
	generator := pdf.NewGenerator(pdfOpts...)
	defer func() { _ = generator.Close() }()

	// Chat assistant, optional: without a key the route answers 503.
	var chat api.ChatService
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		a, err := assistant.New(assistant.Config{
			APIKey:       key,
			Model:        cfg.Assistant.Model,
			Instructions: cfg.Assistant.InstructionsPath,
			Personal:     cfg.Assistant.PersonalPath,
			Links:        cfg.Assistant.LinksPath,
		})
		if err != nil {
			return err
		}
		chat = a
	} else {
		log.Warn("OPENAI_API_KEY not set, chat assistant disabled")
	}

	// Live price feed.
	feedOpts := []ticker.Option{}
	if cfg.Ticker.StreamURL != "" {
		feedOpts = append(feedOpts, ticker.WithStreamURL(cfg.Ticker.StreamURL))
	}
	feed, err := ticker.NewFeed(cfg.Ticker.Pairs, log, feedOpts...)
	if err != nil {
		return err
	}
	feed.Start(ctx)
	defer feed.Close()

	handler := api.NewHandler(posts, renderer, generator, chat, feed, ticker.NewDirectory(), log)
	router := api.NewRouter(handler, log, cfg.Server.AllowedOrigins)

	listenAddr := cfg.Addr()
	if *addr != "" {
		listenAddr = *addr
	}

	srv := &http.Server{
		Addr:         listenAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", logging.String("addr", listenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
