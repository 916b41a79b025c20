package config

import (
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/charmbracelet/log"
)

type LLMProvider string

const (
	ProviderOpenAI LLMProvider = "openai"
	ProviderYandex LLMProvider = "yandex"
)

type StoreBackend string

const (
	BackendJSON   StoreBackend = "json"
	BackendSQLite StoreBackend = "sqlite"
)

type Config struct {
	TelegramBotToken string  `env:"TELEGRAM_BOT_TOKEN,required"`
	AdminUserID      int64   `env:"ADMIN_USER"`
	AdminUsers       []int64 `env:"ADMIN_USERS" envSeparator:":"`
	AdminFilePath    string  `env:"ADMIN_FILE_PATH" envDefault:"data/admins.json"`

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

	// Prompts
	SystemPromptPath string `env:"SYSTEM_PROMPT_PATH" envDefault:"prompts/system_prompt.txt"`
	HistoryLimit     int    `env:"HISTORY_LIMIT" envDefault:"20"`

	// Impression store
	StoreBackend  StoreBackend `env:"STORE_BACKEND" envDefault:"json"`
	UserInfoPath  string       `env:"USER_INFO_PATH" envDefault:"data/user_info.json"`
	GroupInfoPath string       `env:"GROUP_INFO_PATH" envDefault:"data/group_info.json"`
	SQLitePath    string       `env:"SQLITE_PATH" envDefault:"data/impressions.db"`
	JournalPath   string       `env:"JOURNAL_PATH" envDefault:"logs/impressions.jsonl"`

	// Maintenance
	BackupDir      string        `env:"BACKUP_DIR" envDefault:"data/backups"`
	BackupSchedule string        `env:"BACKUP_SCHEDULE" envDefault:"0 4 * * *"`
	EnrichCacheTTL time.Duration `env:"ENRICH_CACHE_TTL" envDefault:"30m"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func New() *Config {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		log.Fatal("failed to parse config", "err", err)
	}
	return cfg
}

// Admins merges the super admin and the ADMIN_USERS list.
func (c *Config) Admins() []int64 {
	out := make([]int64, 0, len(c.AdminUsers)+1)
	if c.AdminUserID != 0 {
		out = append(out, c.AdminUserID)
	}
	for _, id := range c.AdminUsers {
		if id != 0 && id != c.AdminUserID {
			out = append(out, id)
		}
	}
	return out
}
