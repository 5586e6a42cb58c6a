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

	"github.com/go-chi/chi/v5"

	"github.com/pavelength/pavelength/internal/artifact"
	"github.com/pavelength/pavelength/internal/audit"
	"github.com/pavelength/pavelength/internal/config"
	"github.com/pavelength/pavelength/internal/db"
	"github.com/pavelength/pavelength/internal/explorer"
	"github.com/pavelength/pavelength/internal/llm"
	"github.com/pavelength/pavelength/internal/loader"
	"github.com/pavelength/pavelength/internal/mapping"
	"github.com/pavelength/pavelength/internal/middleware"
	"github.com/pavelength/pavelength/internal/query"
	"github.com/pavelength/pavelength/internal/schema"
	"github.com/pavelength/pavelength/internal/session"
)

func RootHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	fmt.Fprintln(w, "Server is up!")
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal("Invalid configuration: ", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	reg := schema.Default()
	if cfg.SchemaFile != "" {
		if reg, err = schema.Load(cfg.SchemaFile); err != nil {
			log.Fatal("Failed to load schema: ", err)
		}
	}

	client, err := llm.NewProvider(ctx, cfg.LLM)
	if err != nil {
		log.Fatal("Failed to create language model client: ", err)
	}
	defer client.Close()
	log.Printf("[llm] provider %s", client.Name())

	var recorder audit.Recorder = audit.Nop{}
	if cfg.DatabaseURL != "" {
		d, err := db.Connect(cfg.DatabaseURL)
		if err != nil {
			log.Fatal("Failed to connect to database: ", err)
		}
		if err := audit.Init(d); err != nil {
			log.Fatal("Failed to initialize audit tables: ", err)
		}
		recorder = audit.NewStore(d)
	}

	artifacts, err := artifact.Open(cfg.Artifacts)
	if err != nil {
		log.Fatal("Failed to open artifact store: ", err)
	}

	var opts []query.Option
	if cfg.TranslateFallback {
		opts = append(opts, query.WithSelectAllFallback())
	}
	sessions := session.NewStore(session.Deps{
		Registry:   reg,
		Resolver:   mapping.NewResolver(client, reg),
		Translator: query.NewTranslator(client, reg, opts...),
		Recorder:   recorder,
		Timeout:    cfg.LLM.Timeout,
	}, cfg.SessionTTL)
	go sessions.Run(ctx, time.Minute)

	r := chi.NewRouter()
	r.Use(middleware.CORSMiddleware(cfg.AllowedOrigins))
	r.Get("/", RootHandler)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AccessKeyMiddleware(cfg.AccessKeyHash))
		r.Mount("/", explorer.SetupRoutes(&explorer.Handler{
			Sessions:       sessions,
			Registry:       reg,
			Loader:         loader.Loader{},
			Artifacts:      artifacts,
			MaxUpload:      cfg.MaxUploadBytes(),
			AllowedOrigins: cfg.AllowedOrigins,
		}))
	})

	srv := &http.Server{
		Addr:              "0.0.0.0:" + cfg.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdown); err != nil {
			log.Printf("shutdown: %v", err)
		}
	}()

	log.Printf("Server listening on port :%s...", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatal(err)
	}
}
