package config

import (
	"log"
	"time"

	"github.com/caarlos0/env/v6"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type Config struct {
	TelegramBotToken string `env:"TELEGRAM_BOT_TOKEN,required"`
	// BusinessAddress is the inbound address the bot answers for; every
	// incoming message resolves to the business registered under it.
	BusinessAddress string `env:"BUSINESS_ADDRESS,required"`

	// LLM settings
	LLMProvider      LLMProvider `env:"LLM_PROVIDER" envDefault:"openai"`
	OpenAIAPIKey     string      `env:"OPENAI_API_KEY"`
	OpenAIBaseURL    string      `env:"OPENAI_BASE_URL"`
	OpenAIModel      string      `env:"OPENAI_MODEL" envDefault:"gpt-4o-mini"`
	YandexOAuthToken string      `env:"YANDEX_OAUTH_TOKEN"`
	YandexFolderID   string      `env:"YANDEX_FOLDER_ID"`

	// OpenRouter (optional)
	OpenRouterReferrer string `env:"OPENROUTER_REFERRER"`
	OpenRouterTitle    string `env:"OPENROUTER_TITLE"`

	// Storage
	DatabasePath string `env:"DATABASE_PATH" envDefault:"data/schedbot.db"`

	// Google Calendar
	GoogleCredentialsPath string `env:"GOOGLE_CREDENTIALS_PATH"`
	// AvailabilityMarker is the event-title substring that marks working
	// blocks on resource calendars.
	AvailabilityMarker string `env:"AVAILABILITY_MARKER" envDefault:"DISPONIBLE"`

	// Conversation and memory
	ConversationTimeout time.Duration `env:"CONVERSATION_TIMEOUT" envDefault:"24h"`
	WindowTail          int           `env:"WINDOW_TAIL" envDefault:"10"`
	MaxPromptMessages   int           `env:"MAX_PROMPT_MESSAGES" envDefault:"30"`
	MaxToolRounds       int           `env:"MAX_TOOL_ROUNDS" envDefault:"8"`
	SummaryThreshold    int           `env:"SUMMARY_THRESHOLD" envDefault:"6"`
	SummaryTail         int           `env:"SUMMARY_TAIL" envDefault:"4"`
	ProfileStart        int           `env:"PROFILE_START" envDefault:"10"`
	ProfileEvery        int           `env:"PROFILE_EVERY" envDefault:"5"`
	ProfileListMax      int           `env:"PROFILE_LIST_MAX" envDefault:"5"`

	// Booking
	BookingWindowDays int    `env:"BOOKING_WINDOW_DAYS" envDefault:"30"`
	MaxAlternatives   int    `env:"MAX_ALTERNATIVES" envDefault:"5"`
	Timezone          string `env:"TIMEZONE" envDefault:"America/Guayaquil"`

	// Reminders
	ReminderCronSpec string `env:"REMINDER_CRON_SPEC" envDefault:"0 * * * *"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}
	return cfg
}

// Location resolves the configured timezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		log.Printf("⚠️ unknown timezone %q, using UTC", c.Timezone)
		return time.UTC
	}
	return loc
}
