package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"golang.org/x/oauth2"

	_ "github.com/lib/pq"

	"github.com/soochol/docbridge/internal/api"
	"github.com/soochol/docbridge/internal/cache"
	"github.com/soochol/docbridge/internal/config"
	"github.com/soochol/docbridge/internal/extract"
	"github.com/soochol/docbridge/internal/history"
	"github.com/soochol/docbridge/internal/notify"
	"github.com/soochol/docbridge/internal/pipeline"
	"github.com/soochol/docbridge/internal/remote"
	"github.com/soochol/docbridge/internal/storage"
	"github.com/soochol/docbridge/internal/validate"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "serve":
			serve()
			return
		case "migrate":
			migrate()
			return
		}
	}
	fmt.Println("docbridge v0.1.0")
	fmt.Println("Usage: docbridge serve|migrate")
}

func loadConfig() *config.Config {
	// .env is optional; real environments set variables directly.
	_ = godotenv.Load()

	cfg, err := config.LoadDefault()
	if err != nil {
		slog.Error("config error", "err", err)
		os.Exit(1)
	}
	return cfg
}

func serve() {
	cfg := loadConfig()
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	validator := validate.New()
	extractor := extract.New()
	processor := pipeline.New(validator, extractor)

	srv := api.NewServer(processor, validator, cfg.Limits)
	srv.SetExtractionEnabled(cfg.Extraction.Enabled)

	if cfg.Storage.Dir != "" {
		store, err := storage.NewLocalStorage(cfg.Storage.Dir)
		if err != nil {
			slog.Error("storage error", "err", err)
			os.Exit(1)
		}
		srv.SetStorage(store)
	}

	if notifier := buildNotifier(cfg.Alerts); notifier != nil {
		srv.SetNotifier(notifier)
	}

	// History: memory always, PostgreSQL on top when configured.
	mem := history.NewMemory()
	if cfg.Database.URL != "" {
		database, err := history.NewDB(ctx, cfg.Database.URL)
		if err != nil {
			slog.Error("database error", "err", err)
			os.Exit(1)
		}
		defer database.Close()
		if err := database.Migrate(ctx); err != nil {
			slog.Error("migration error", "err", err)
			os.Exit(1)
		}
		srv.SetHistory(history.NewPersistent(mem, database))
		slog.Info("history persisted to postgres")
	} else {
		srv.SetHistory(mem)
		slog.Info("history in memory only")
	}

	// Drive client and content cache are optional: without a base URL the
	// item endpoints are simply not mounted.
	var client *remote.Client
	var contentCache *cache.Cache[[]byte]
	if cfg.Remote.BaseURL != "" {
		client = remote.NewClient(cfg.Remote.BaseURL, driveTokens(), policyFromConfig(cfg.Remote),
			remote.WithHTTPClient(&http.Client{Timeout: time.Duration(cfg.Remote.TimeoutSeconds) * time.Second}))
		srv.SetRemoteClient(client)
		srv.SetRemoteLimits(int64(cfg.Remote.ChunkSizeMiB)<<20, cfg.Remote.MaxPages)

		contentCache = cache.New[[]byte](cache.Options{
			DefaultTTL:    time.Duration(cfg.Cache.TTLSeconds) * time.Second,
			MaxSize:       cfg.Cache.MaxEntries,
			Enabled:       cfg.Cache.Enabled,
			SweepInterval: time.Duration(cfg.Cache.SweepSeconds) * time.Second,
		})
		defer contentCache.Stop()
		srv.SetContentCache(contentCache)
	}

	// Scheduled cache warm-up keeps hot drive content resident.
	if client != nil && cfg.Cache.WarmupSchedule != "" && len(cfg.Cache.WarmupDrives) > 0 {
		c := cron.New()
		_, err := c.AddFunc(cfg.Cache.WarmupSchedule, func() {
			warmCache(ctx, client, contentCache, cfg.Cache.WarmupDrives, cfg.Cache.WarmupFolderLimit,
				time.Duration(cfg.Cache.TTLSeconds)*time.Second)
		})
		if err != nil {
			slog.Error("invalid warmup schedule", "spec", cfg.Cache.WarmupSchedule, "err", err)
			os.Exit(1)
		}
		c.Start()
		defer c.Stop()
		slog.Info("cache warm-up scheduled", "spec", cfg.Cache.WarmupSchedule, "drives", len(cfg.Cache.WarmupDrives))
	}

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: srv.Handler()}

	go func() {
		slog.Info("starting docbridge server", "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		slog.Warn("shutdown incomplete", "err", err)
	}
}

func migrate() {
	cfg := loadConfig()
	if cfg.Database.URL == "" {
		slog.Error("migrate requires database.url or DOCBRIDGE_DATABASE_URL")
		os.Exit(1)
	}

	ctx := context.Background()
	database, err := history.NewDB(ctx, cfg.Database.URL)
	if err != nil {
		slog.Error("database error", "err", err)
		os.Exit(1)
	}
	defer database.Close()

	if err := database.Migrate(ctx); err != nil {
		slog.Error("migration error", "err", err)
		os.Exit(1)
	}
	slog.Info("migrations applied")
}

// buildNotifier assembles alert transports from config. Returns nil when
// none are configured.
func buildNotifier(cfg config.AlertsConfig) *notify.Notifier {
	var senders []notify.Sender
	if cfg.Slack.WebhookURL != "" {
		senders = append(senders, &notify.SlackSender{WebhookURL: cfg.Slack.WebhookURL, Channel: cfg.Slack.Channel})
	}
	if cfg.Telegram.BotToken != "" {
		senders = append(senders, &notify.TelegramSender{BotToken: cfg.Telegram.BotToken, ChatID: cfg.Telegram.ChatID})
	}
	if cfg.SMTP.Host != "" {
		senders = append(senders, &notify.SMTPSender{
			Host: cfg.SMTP.Host, Port: cfg.SMTP.Port,
			From: cfg.SMTP.From, Password: cfg.SMTP.Password,
			To: cfg.SMTP.To, Subject: cfg.SMTP.Subject,
		})
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.New(senders...)
}

// driveTokens builds the token source for the drive API from the
// environment. A static bearer token is enough for service principals that
// refresh out of band.
func driveTokens() oauth2.TokenSource {
	token := os.Getenv("DOCBRIDGE_DRIVE_TOKEN")
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

func policyFromConfig(rc config.RemoteConfig) remote.Policy {
	p := remote.DefaultPolicy()
	if rc.MaxRetries > 0 {
		p.MaxRetries = rc.MaxRetries
	}
	if rc.BaseDelayMS > 0 {
		p.BaseDelay = time.Duration(rc.BaseDelayMS) * time.Millisecond
	}
	if rc.MaxDelayMS > 0 {
		p.MaxDelay = time.Duration(rc.MaxDelayMS) * time.Millisecond
	}
	if rc.BackoffFactor > 0 {
		p.BackoffFactor = rc.BackoffFactor
	}
	return p
}

// warmCache preloads the first few files of each configured drive root so
// interactive reads hit memory.
func warmCache(ctx context.Context, client *remote.Client, contentCache *cache.Cache[[]byte], drives []string, perDrive int, ttl time.Duration) {
	if perDrive <= 0 {
		perDrive = 5
	}
	for _, driveID := range drives {
		items, err := client.GetAllPages(ctx, fmt.Sprintf("/drives/%s/items/root/children", driveID), 10)
		if err != nil {
			slog.Warn("warm-up listing failed", "drive", driveID, "err", err)
			continue
		}

		warmed := 0
		for _, raw := range items {
			if warmed >= perDrive {
				break
			}
			id, isFile := itemForWarmup(raw)
			if !isFile {
				continue
			}
			endpoint := fmt.Sprintf("/drives/%s/items/%s/content", driveID, id)
			key := cache.Key("drive", driveID, "item", id, "content")
			contentCache.Preload(ctx, key, func(ctx context.Context) ([]byte, error) {
				return client.DownloadBytes(ctx, endpoint)
			}, ttl)
			warmed++
		}
		slog.Info("cache warm-up pass", "drive", driveID, "items", warmed)
	}
}

// itemForWarmup pulls the id out of a drive item and reports whether it is a
// file (folders have no content to preload).
func itemForWarmup(raw []byte) (string, bool) {
	var item struct {
		ID     string         `json:"id"`
		File   map[string]any `json:"file"`
		Folder map[string]any `json:"folder"`
	}
	if err := json.Unmarshal(raw, &item); err != nil || item.ID == "" {
		return "", false
	}
	return item.ID, item.File != nil && item.Folder == nil
}
