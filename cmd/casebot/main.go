package main

import (
	"context"
	"flag"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/myrjola/casebot/internal/ai"
	"github.com/myrjola/casebot/internal/backend"
	"github.com/myrjola/casebot/internal/config"
	"github.com/myrjola/casebot/internal/errors"
	"github.com/myrjola/casebot/internal/logging"
	"github.com/myrjola/casebot/internal/pdfextract"
	"github.com/myrjola/casebot/internal/pprofserver"
	"github.com/myrjola/casebot/internal/telegram"
	"github.com/myrjola/casebot/internal/workflow"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
)

type application struct {
	logger *slog.Logger
	stores *backend.Stores
	engine *workflow.Engine
}

func run(ctx context.Context, logger *slog.Logger, lookupEnv func(string) (string, bool)) error {
	cfg, err := config.Load(lookupEnv)
	if err != nil {
		return errors.Wrap(err, "load config")
	}

	if cfg.PprofAddr != "" {
		pprofserver.Launch(ctx, cfg.PprofAddr, logger)
	}

	var stores *backend.Stores
	if stores, err = backend.Open(ctx, logger, cfg); err != nil {
		return errors.Wrap(err, "open stores")
	}
	defer func() {
		if closeErr := stores.Close(); closeErr != nil {
			logger.LogAttrs(ctx, slog.LevelError, "failed to close stores", errors.SlogError(closeErr))
		}
	}()

	summarizer, transcriber := collaborators(logger, cfg)
	engine := workflow.NewEngine(workflow.Options{
		States:      stores.States,
		Cases:       stores.Cases,
		Extractor:   pdfextract.NewExtractor(logger),
		Summarizer:  summarizer,
		Transcriber: transcriber,
		Timeout:     cfg.CollaboratorTimeout,
		Now:         time.Now,
		Logger:      logger,
	})
	directives, err := engine.Recover(ctx)
	if err != nil {
		return errors.Wrap(err, "recover workflow")
	}

	app := application{
		logger: logger,
		stores: stores,
		engine: engine,
	}

	if cfg.TelegramToken == "" {
		logger.LogAttrs(ctx, slog.LevelWarn, "TELEGRAM_BOT_TOKEN not set, running the admin server only")
	} else {
		var bot *tgbotapi.BotAPI
		if bot, err = tgbotapi.NewBotAPI(cfg.TelegramToken); err != nil {
			return errors.Wrap(err, "connect telegram bot")
		}
		logger.LogAttrs(ctx, slog.LevelInfo, "connected to telegram", slog.String("bot", bot.Self.UserName))
		client := &http.Client{Timeout: cfg.CollaboratorTimeout} //nolint:exhaustruct // defaults are fine
		adapter := telegram.NewAdapter(logger, bot, engine, client, cfg.AllowedUserIDs())
		adapter.Broadcast(ctx, directives)
		go app.pollTelegram(ctx, bot, adapter)
	}

	return app.configureAndStartServer(ctx, cfg.AdminAddr)
}

// collaborators returns the summarizer and transcriber, or deterministic local ones with USE_DUMMY_APIS.
func collaborators(logger *slog.Logger, cfg config.Config) (workflow.Summarizer, workflow.Transcriber) {
	if cfg.UseDummyAPIs {
		return ai.DummySummarizer{}, ai.DummyTranscriber{}
	}
	client := ai.NewClient(logger, cfg.OpenAIAPIKey, cfg.OpenAIBaseURL)
	return ai.NewSummarizer(client, cfg.OpenAIModel), ai.NewTranscriber(client, cfg.TranscriptionLang)
}

func main() {
	envFile := flag.String("env", ".env", "path to the dotenv file, a missing file is ignored")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.New(logging.NewContextHandler(slog.NewTextHandler(os.Stderr, nil))).
			LogAttrs(ctx, slog.LevelError, "failed to load dotenv", errors.SlogError(err))
		os.Exit(1)
	}
	logger := logging.NewLogger(os.Stdout, logging.ParseLevel(os.Getenv("LOG_LEVEL")))

	if err := run(ctx, logger, os.LookupEnv); err != nil {
		logger.LogAttrs(ctx, slog.LevelError, "failure starting application", errors.SlogError(err))
		stop()
		os.Exit(1) //nolint:gocritic // stop is called above
	}
}
