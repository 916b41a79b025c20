package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"

	"azusa-imp/internal/analytics"
	"azusa-imp/internal/auth"
	"azusa-imp/internal/config"
	"azusa-imp/internal/impression"
	"azusa-imp/internal/llm"
	"azusa-imp/internal/logger"
	"azusa-imp/internal/scheduler"
	"azusa-imp/internal/storage"
	"azusa-imp/internal/telegram"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn(".env file not found", "err", err)
	}

	cfg := config.New()
	logger.Setup(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var adminRepo auth.Repository
	if cfg.AdminFilePath != "" {
		repo, err := auth.NewFileRepository(cfg.AdminFilePath)
		if err != nil {
			log.Error("failed to init admin repo", "err", err)
		} else {
			adminRepo = repo
		}
	}
	authSvc, err := auth.NewWithRepo(adminRepo, cfg.Admins())
	if err != nil {
		log.Fatal("failed to init auth", "err", err)
	}

	llmClient, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatal("failed to create llm client", "err", err)
	}

	store, err := openStore(cfg)
	if err != nil {
		log.Fatal("failed to open impression store", "backend", cfg.StoreBackend, "err", err)
	}
	defer store.Close()

	api, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Fatal("failed to connect to telegram", "err", err)
	}

	enricher, err := impression.NewEnricher(telegram.NewAdapter(api), cfg.EnrichCacheTTL)
	if err != nil {
		log.Fatal("failed to init enricher", "err", err)
	}
	defer enricher.Close()

	opts := []impression.Option{}
	var journal *storage.FileJournal
	if cfg.JournalPath != "" {
		journal, err = storage.NewFileJournal(cfg.JournalPath)
		if err != nil {
			log.Error("failed to init impression journal", "err", err)
		} else {
			opts = append(opts, impression.WithJournal(journal))
		}
	}
	plugin := impression.NewPlugin(store, enricher, opts...)

	botOpts := telegram.Options{
		SystemPrompt: readSystemPrompt(cfg.SystemPromptPath),
		HistoryLimit: cfg.HistoryLimit,
	}
	if journal != nil {
		botOpts.Journal = journal
	}
	bot := telegram.New(api, authSvc, llmClient, plugin, botOpts)

	sched := scheduler.New(cfg.BackupSchedule)
	if cfg.BackupDir != "" {
		sched.SetBackupFunction(func(ctx context.Context) error {
			dst, err := store.Backup(ctx, cfg.BackupDir)
			if err != nil {
				return err
			}
			log.Info("impression store backed up", "path", dst)
			return nil
		})
	}
	if journal != nil {
		sched.SetDigestFunction(func(ctx context.Context) error {
			entries, err := journal.LoadEntries()
			if err != nil {
				return err
			}
			stats := analytics.AnalyzeDailyEntries(entries, time.Now().UTC())
			log.Info("daily impression digest", "date", stats.Date, "updates", stats.TotalUpdates, "users", stats.UniqueUsers)
			if stats.TotalUpdates > 0 {
				bot.NotifyAdmins(stats.Summary())
			}
			return nil
		})
	}
	if err := sched.Start(); err != nil {
		log.Error("failed to start scheduler", "err", err)
	}
	defer sched.Stop()

	bot.Start(ctx)
	log.Info("shutting down")
}

func openStore(cfg *config.Config) (impression.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return impression.NewSQLStore(cfg.SQLitePath)
	default:
		return impression.NewFileStore(cfg.UserInfoPath, cfg.GroupInfoPath)
	}
}

func readSystemPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Warn("system prompt file not found or unreadable", "path", path, "err", err)
		return ""
	}
	return strings.TrimSpace(string(data))
}
