package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/getzep/entitylink/config"
	"github.com/getzep/entitylink/pkg/auth"
	"github.com/getzep/entitylink/pkg/backends/remote"
	"github.com/getzep/entitylink/pkg/dispatch"
	"github.com/getzep/entitylink/pkg/models"
	"github.com/getzep/entitylink/pkg/observability"
	"github.com/getzep/entitylink/pkg/registry"
	"github.com/getzep/entitylink/pkg/server"
)

const ShutdownTimeout = 30 * time.Second

// run is the entrypoint for the entitylink server
func run(c *cobra.Command, args []string) error {
	if showVersion {
		fmt.Println(config.VersionString)
		return nil
	}

	applyArgs(args)

	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("error configuring entitylink: %w", err)
	}

	if generateKey {
		token, err := auth.GenerateJWT(cfg)
		if err != nil {
			return err
		}
		fmt.Println(token)
		return nil
	}

	config.SetLogLevel(cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	// usage output is only useful for argument errors
	c.SilenceUsage = true

	log.Infof("Starting entitylink server version %s", config.VersionString)

	ctx, stop := signal.NotifyContext(c.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := observability.SetupTracing(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownTracing(context.Background()); err != nil {
			log.Errorf("Error shutting down tracing: %v", err)
		}
	}()

	appState, err := NewAppState(ctx, cfg)
	if err != nil {
		return err
	}

	srv, err := server.Create(appState)
	if err != nil {
		return err
	}

	return serve(ctx, srv)
}

// applyArgs sets the knowledge base positional arguments, which take
// precedence over every other config source.
func applyArgs(args []string) {
	if len(args) > 0 {
		viper.Set("models.base_url", args[0])
	}
	if len(args) > 1 {
		viper.Set("models.wiki_version", args[1])
	}
}

// NewAppState loads every configured model and builds the dispatcher. Any
// model that fails to load aborts startup.
func NewAppState(ctx context.Context, cfg *config.Config) (*models.AppState, error) {
	client := remote.NewClient(cfg)

	dispatcher, err := loadDispatcher(ctx, cfg, client)
	if err != nil {
		return nil, err
	}

	return &models.AppState{
		Dispatcher: dispatcher,
		Config:     cfg,
	}, nil
}

func loadDispatcher(ctx context.Context, cfg *config.Config, client *remote.Client) (*dispatch.Dispatcher, error) {
	log.Infof(
		"Loading models from %s (knowledge base %s, version %s)",
		cfg.Backend.URL,
		cfg.Models.BaseURL,
		cfg.Models.WikiVersion,
	)

	// the ED model is shared by every entity and conversation handler
	if err := client.LoadEDModel(ctx); err != nil {
		return nil, fmt.Errorf("failed to load ed model %s: %w", cfg.Models.EDModel, err)
	}

	entities, err := registry.Load(
		ctx,
		remote.KindNER,
		cfg.Models.NERModels,
		func(ctx context.Context, name string) (models.EntityHandler, error) {
			return client.LoadEntityHandler(ctx, name)
		},
	)
	if err != nil {
		return nil, err
	}

	conversations, err := registry.Load(
		ctx,
		remote.KindConversation,
		cfg.Models.ConversationModels,
		func(ctx context.Context, name string) (models.ConversationHandler, error) {
			return client.LoadConversationHandler(ctx, name)
		},
	)
	if err != nil {
		return nil, err
	}

	log.Infof("Serving ner models %v and conversation models %v", entities.Names(), conversations.Names())

	return dispatch.NewDispatcher(entities, conversations), nil
}

// serve runs srv until ctx is cancelled, then shuts it down gracefully.
func serve(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		log.Infof("Listening on: %s", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
