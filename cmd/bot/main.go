package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"schedbot/internal/availability"
	"schedbot/internal/booking"
	"schedbot/internal/calendar"
	"schedbot/internal/config"
	"schedbot/internal/llm"
	"schedbot/internal/memory"
	"schedbot/internal/orchestrator"
	"schedbot/internal/scheduler"
	"schedbot/internal/storage"
	"schedbot/internal/telegram"
	"schedbot/internal/tools"
)

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	loc := cfg.Location()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}

	var cal calendar.Client = calendar.Unavailable{}
	if cfg.GoogleCredentialsPath != "" {
		gc, err := calendar.NewGoogle(ctx, cfg.GoogleCredentialsPath, cfg.AvailabilityMarker, cfg.Timezone)
		if err != nil {
			log.Printf("⚠️ Google Calendar unavailable, running on local schedules: %v", err)
		} else {
			cal = gc
			log.Println("✅ Google Calendar connected")
		}
	} else {
		log.Println("⚠️ No Google credentials configured, running on local schedules")
	}

	factory := &llm.Factory{
		OpenaiAPIKey:       cfg.OpenAIAPIKey,
		OpenaiBaseURL:      cfg.OpenAIBaseURL,
		OpenRouterReferrer: cfg.OpenRouterReferrer,
		OpenRouterTitle:    cfg.OpenRouterTitle,
		YandexOAuthToken:   cfg.YandexOAuthToken,
		YandexFolderID:     cfg.YandexFolderID,
	}
	assistantClient, err := factory.CreateToolClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create assistant llm client: %v", err)
	}
	// Memory maintenance has no tool calls, so any provider works here.
	memoryClient, err := factory.CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
	if err != nil {
		log.Fatalf("failed to create memory llm client: %v", err)
	}

	avail := availability.NewEngine(cal, store.Appointments)
	bookings := booking.NewEngine(store, cal, avail, booking.Config{
		BookingWindowDays: cfg.BookingWindowDays,
		MaxAlternatives:   cfg.MaxAlternatives,
		Timezone:          loc,
	})
	registry := tools.NewRegistry(store, avail, bookings)

	turns := orchestrator.New(
		store,
		assistantClient,
		registry,
		memory.NewSummarizer(memoryClient, cfg.SummaryThreshold, cfg.SummaryTail),
		memory.NewExtractor(memoryClient),
		orchestrator.Config{
			ConversationTimeout: cfg.ConversationTimeout,
			WindowTail:          cfg.WindowTail,
			MaxPromptMessages:   cfg.MaxPromptMessages,
			MaxToolRounds:       cfg.MaxToolRounds,
			ProfileStart:        cfg.ProfileStart,
			ProfileEvery:        cfg.ProfileEvery,
			ProfileListMax:      cfg.ProfileListMax,
			Timezone:            loc,
		},
	)

	bot, err := telegram.New(cfg.TelegramBotToken, cfg.BusinessAddress, turns)
	if err != nil {
		log.Fatalf("failed to create bot: %v", err)
	}

	reminders := scheduler.New(store, bot.Notify, cfg.ReminderCronSpec, loc)
	if err := reminders.Start(); err != nil {
		log.Fatalf("failed to start reminder scheduler: %v", err)
	}
	defer reminders.Stop()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Println("Shutting down")
		cancel()
	}()

	log.Println("✅ Bot started")
	bot.Start(ctx)
}
