package cli

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"scrapp.io/client/internal/api"
	"scrapp.io/client/internal/auth"
	"scrapp.io/client/internal/config"
	"scrapp.io/client/internal/core"
	"scrapp.io/client/internal/store"
)

// App holds the services one command invocation works with.
type App struct {
	Config config.Config
	Logger *zap.Logger

	Session    *auth.Store
	Auth       *core.AuthService
	Posts      *core.PostService
	Feed       *core.Feed
	Classifier *core.ClassifierService
	Chat       *core.ChatService

	closers []func()
}

func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	app := &App{Config: cfg, Logger: logger}

	kv, err := store.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.closers = append(app.closers, func() {
		if err := kv.Close(); err != nil {
			logger.Warn("Error closing database", zap.Error(err))
		}
	})

	app.Session = auth.NewStore(store.NewCredentialStore(kv, cfg.CredentialKey), logger.Named("session"))
	app.Session.Initialize(ctx)

	httpClient := &http.Client{Timeout: cfg.RequestTimeout()}
	gwLogger := logger.Named("gateway")

	apiGW, err := api.NewClient(cfg.APIBaseURL, app.Session,
		api.WithHTTPClient(httpClient), api.WithLogger(gwLogger))
	if err != nil {
		app.Close()
		return nil, err
	}
	classifyGW, err := api.NewClient(cfg.ServiceBaseURL, app.Session,
		api.WithHTTPClient(httpClient), api.WithLogger(gwLogger), api.WithScheme(auth.SchemeBearer))
	if err != nil {
		app.Close()
		return nil, err
	}

	app.Auth = core.NewAuthService(apiGW, app.Session, logger.Named("auth"))
	app.Posts = core.NewPostService(apiGW, app.Session, cfg.MaxPages, logger.Named("posts"))
	app.Feed = core.NewFeed(app.Posts, core.PostsPath, logger.Named("feed"))
	app.Classifier = core.NewClassifierService(classifyGW, logger.Named("classify"))

	var responder core.Responder
	switch cfg.Chat.Backend {
	case config.ChatBackendGemini:
		llm, err := core.NewLLMService(ctx, cfg.Chat.GeminiAPIKey, cfg.Chat.GeminiModel, logger.Named("gemini"))
		if err != nil {
			app.Close()
			return nil, err
		}
		app.closers = append(app.closers, llm.Close)
		responder = llm
	default:
		chatGW, err := api.NewClient(cfg.ServiceBaseURL, nil,
			api.WithHTTPClient(httpClient), api.WithLogger(gwLogger))
		if err != nil {
			app.Close()
			return nil, err
		}
		responder = core.NewHTTPResponder(chatGW)
	}
	app.Chat = core.NewChatService(responder, logger.Named("chat"))

	return app, nil
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
