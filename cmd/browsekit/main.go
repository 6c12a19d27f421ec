package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rahul/browsekit/internal/agent"
	"github.com/rahul/browsekit/internal/gateway"
	"github.com/rahul/browsekit/internal/governance"
	"github.com/rahul/browsekit/internal/observability"
	"github.com/rahul/browsekit/internal/store"
	"github.com/rahul/browsekit/pkg/browser/chromium"
	"github.com/rahul/browsekit/pkg/config"
	"github.com/rahul/browsekit/pkg/toolkit"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

func main() {
	observability.PrintBanner()
	observability.InitializeTerminal()

	// Route all log output through the terminal mutex so it never
	// interrupts the dashboard's cursor save/restore sequence.
	log.SetOutput(observability.NewTermWriter())

	cfg := config.LoadConfig("config.yaml")
	logger := observability.NewLogger()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	history, err := store.NewHistoryStore(cfg.Memory.Path)
	if err != nil {
		log.Fatal(err)
	}

	var cache *store.Cache
	if cfg.Browser.Caching {
		cachePath := cfg.Browser.CachePath
		if cachePath == "" {
			cachePath = "browsekit_cache.db"
		}
		cache, err = store.NewCache(cachePath)
		if err != nil {
			log.Printf("Warning: extraction cache disabled: %v", err)
		} else {
			cache.Logger = logger
			go cache.StartJanitor(ctx, 1*time.Hour)
		}
	}

	// Initialize LLM (using default enabled provider)
	pName, pCfg := cfg.GetDefaultProvider()
	if pName == "" {
		log.Fatal("No enabled provider found in config")
	}

	var llm llms.Model
	switch pName {
	case "openai", "openrouter":
		opts := []openai.Option{
			openai.WithToken(pCfg.APIKey),
			openai.WithModel(pCfg.Model),
		}
		if pCfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(pCfg.BaseURL))
		}
		llm, err = openai.New(opts...)
	default:
		log.Fatalf("Provider %s not yet implemented in main", pName)
	}

	if err != nil {
		log.Fatal(err)
	}

	// One browser session shared by all four tools, owned here.
	sessionOpts := []chromium.Option{
		chromium.WithHeadless(cfg.Browser.Headless),
		chromium.WithModel(llm),
	}
	if cfg.Browser.UserAgent != "" {
		sessionOpts = append(sessionOpts, chromium.WithUserAgent(cfg.Browser.UserAgent))
	}
	if cache != nil {
		sessionOpts = append(sessionOpts, chromium.WithCache(cache))
	}

	session := chromium.New(sessionOpts...)
	if err := session.Init(ctx); err != nil {
		log.Fatal(err)
	}
	logger.LogSession("init", "shared chromium session ready")

	tk := toolkit.New(toolkit.WithSession(session))

	prompts := agent.NewPromptManager(cfg.App.PromptDir)
	gov := governance.NewDefaultPolicyEngine()
	// Default safety rules: keep the browser off local files and
	// link-local metadata endpoints.
	_ = gov.DenyArguments(`(?i)file://`)
	gov.DenyHost("169.254.169.254")
	gov.DenyHost("metadata.google.internal")
	gov.DenyHost("localhost")
	gov.DenyHost("127.0.0.1")

	runner := agent.New(llm, tk.Tools(), gov, history, prompts, logger)

	var gateways []gateway.Messenger
	if tgCfg, ok := cfg.GetTelegramConfig(); ok {
		tg, err := gateway.NewTelegramGateway(tgCfg.Token, runner)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, tg)
	}
	if dcCfg, ok := cfg.GetDiscordConfig(); ok {
		dc, err := gateway.NewDiscordGateway(dcCfg.Token, runner)
		if err != nil {
			log.Fatal(err)
		}
		gateways = append(gateways, dc)
	}
	if len(gateways) == 0 {
		log.Fatal("No gateway is enabled in config")
	}

	// Start Live Resource Dashboard (1-second updates)
	go func() {
		ticker := time.NewTicker(1 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.PrintLiveStatus()
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				observability.Heartbeat()
				logger.LogHeartbeat()
			}
		}
	}()

	// Start gateways in goroutines so we can wait for context in the main loop
	for _, gw := range gateways {
		gw := gw
		go func() {
			if err := gw.Start(); err != nil {
				log.Printf("\033[91m[ FAIL ] GATEWAY CRITICAL ERROR: %v\033[0m", err)
				stop() // stop caller if gateway dies
			}
		}()
	}

	// Wait for shutdown signal
	<-ctx.Done()

	for _, gw := range gateways {
		if err := gw.Stop(); err != nil {
			log.Printf("Error stopping gateway: %v", err)
		}
	}
	if err := session.Close(); err != nil {
		log.Printf("Error closing browser session: %v", err)
	}
	logger.LogSession("close", "shared chromium session closed")
	if cache != nil {
		if err := cache.Close(); err != nil {
			log.Printf("Error closing extraction cache: %v", err)
		}
	}
	if err := history.Close(); err != nil {
		log.Printf("Error closing history store: %v", err)
	}

	// Reset terminal aesthetics
	observability.CleanupTerminal()

	// Give a short time for final logs/syncs
	time.Sleep(500 * time.Millisecond)
	log.Println("\033[95m[ EXIT ] BROWSER DE-INITIALIZED. GOODBYE.\033[0m")
}
