// internal/app/app.go
package app

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/markdave123-py/smartdoc/internal/config"
	"github.com/markdave123-py/smartdoc/internal/core"
	db "github.com/markdave123-py/smartdoc/internal/core/database"
	"github.com/markdave123-py/smartdoc/internal/core/extraction"
	"github.com/markdave123-py/smartdoc/internal/core/llm"
	objectclient "github.com/markdave123-py/smartdoc/internal/core/object-client"
	"github.com/markdave123-py/smartdoc/internal/core/prompt"
	"github.com/markdave123-py/smartdoc/internal/core/session"
	"github.com/markdave123-py/smartdoc/internal/models"
	"github.com/markdave123-py/smartdoc/internal/services"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	Logger       *zap.Logger
	SessionStore core.SessionStore
	ObjectClient core.ObjectClient
	LLM          core.LLMProvider
	Chat         *services.ChatService
	Janitor      *session.Janitor
	Server       *Server
}

func NewApp(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	appCtx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	sessionStore, err := NewSessionStore(appCtx, cfg, logger)
	if err != nil {
		return nil, err
	}
	logger.Info("session store ready", zap.String("store", cfg.SessionStore))

	objClient, err := NewObjectClient(appCtx, cfg, logger)
	if err != nil {
		_ = sessionStore.Close()
		return nil, err
	}
	logger.Info("document store ready", zap.String("store", cfg.DocumentStore))

	provider := NewProvider(cfg)
	chat := NewChatService(cfg, provider, objClient, logger)

	// Requests and the janitor share one locker so expiry never races a request.
	locker := session.NewLocker()
	janitor := session.NewJanitor(sessionStore, locker, cfg.SessionTTL, cfg.SessionSweepInterval,
		func(ctx context.Context, s models.Session) {
			if err := chat.End(ctx, s); err != nil {
				logger.Warn("expired session cleanup failed", zap.String("session_id", s.ID), zap.Error(err))
			}
		}, logger)

	tokens, err := session.NewTokens(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		_ = sessionStore.Close()
		return nil, err
	}
	if cfg.SessionSecret == "" {
		logger.Warn("SESSION_SECRET not set; sessions will not survive a restart")
	}
	if cfg.DefaultCredential() == "" {
		logger.Warn("no server API key configured; users must supply their own", zap.String("provider", provider.Name()))
	}

	server := NewServer(cfg, chat, sessionStore, tokens, locker, logger)

	return &App{
		Logger:       logger,
		SessionStore: sessionStore,
		ObjectClient: objClient,
		LLM:          provider,
		Chat:         chat,
		Janitor:      janitor,
		Server:       server,
	}, nil
}

// Run serves HTTP and sweeps expired sessions until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(a.Server.Start)
	g.Go(func() error { return a.Janitor.Run(gctx) })
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.Server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (a *App) Close() {
	if a.SessionStore != nil {
		if err := a.SessionStore.Close(); err != nil {
			a.Logger.Warn("close session store", zap.Error(err))
		}
	}
	if c, ok := a.LLM.(io.Closer); ok {
		if err := c.Close(); err != nil {
			a.Logger.Warn("close llm provider", zap.Error(err))
		}
	}
}

// NewSessionStore returns the session store selected by SESSION_STORE.
func NewSessionStore(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.SessionStore, error) {
	switch cfg.SessionStore {
	case "postgres":
		return db.NewDatabaseClient(ctx, cfg, logger)
	case "memory", "":
		return session.NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown session store %q", cfg.SessionStore)
	}
}

// NewObjectClient returns the document store selected by DOCUMENT_STORE.
func NewObjectClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (core.ObjectClient, error) {
	switch cfg.DocumentStore {
	case "s3":
		return objectclient.NewS3Client(ctx, cfg, logger)
	case "memory", "":
		return objectclient.NewMemoryClient(), nil
	default:
		return nil, fmt.Errorf("unknown document store %q", cfg.DocumentStore)
	}
}

// NewProvider returns the answer client selected by LLM_PROVIDER.
func NewProvider(cfg *config.Config) core.LLMProvider {
	if cfg.LLMProvider == "openai" {
		return llm.NewOpenAILLM(llm.GenerationConfig{
			Model:           cfg.OpenAIModel,
			Temperature:     float32(cfg.Temperature),
			MaxOutputTokens: int32(cfg.MaxOutputTokens),
		}, cfg.OpenAIBaseURL)
	}
	return llm.NewGeminiLLM(llm.GenerationConfig{
		Model:           cfg.GenModel,
		Temperature:     float32(cfg.Temperature),
		MaxOutputTokens: int32(cfg.MaxOutputTokens),
	}, cfg.AIAPIKey)
}

// NewChatService wires extractor, assembler and provider into the pipeline.
func NewChatService(cfg *config.Config, provider core.LLMProvider, objects core.ObjectClient, logger *zap.Logger) *services.ChatService {
	return services.NewChatService(
		extraction.NewPDFExtractor(cfg.TempDir, logger),
		prompt.NewAssembler(cfg.PromptCharBudget),
		provider,
		objects,
		services.ChatConfig{
			Bucket:            cfg.BucketName,
			PageLimit:         cfg.PageLimit,
			DefaultCredential: cfg.DefaultCredential(),
			LLMTimeout:        cfg.LLMTimeout,
		},
		logger,
	)
}
