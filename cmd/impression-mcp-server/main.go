package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/caarlos0/env/v6"
	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"azusa-imp/internal/config"
	"azusa-imp/internal/impression"
	"azusa-imp/internal/logger"
)

// serverConfig is the subset of the bot settings the MCP server needs.
type serverConfig struct {
	StoreBackend  config.StoreBackend `env:"STORE_BACKEND" envDefault:"json"`
	UserInfoPath  string              `env:"USER_INFO_PATH" envDefault:"data/user_info.json"`
	GroupInfoPath string              `env:"GROUP_INFO_PATH" envDefault:"data/group_info.json"`
	SQLitePath    string              `env:"SQLITE_PATH" envDefault:"data/impressions.db"`
	LogLevel      string              `env:"LOG_LEVEL" envDefault:"info"`
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Warn(".env file not found", "err", err)
	}

	var cfg serverConfig
	if err := env.Parse(&cfg); err != nil {
		log.Fatal("failed to parse config", "err", err)
	}
	logger.Setup(cfg.LogLevel)

	var (
		store impression.Store
		err   error
	)
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		store, err = impression.NewSQLStore(cfg.SQLitePath)
	default:
		store, err = impression.NewFileStore(cfg.UserInfoPath, cfg.GroupInfoPath)
	}
	if err != nil {
		log.Fatal("failed to open impression store", "backend", cfg.StoreBackend, "err", err)
	}
	defer store.Close()

	tools, err := newImpressionTools(store)
	if err != nil {
		log.Fatal("failed to init tools", "err", err)
	}

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "azusa-impression-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        impression.GroupMembersTool,
		Description: "Lists the recorded members of a group with their profile and the bot's impression of them",
	}, tools.GroupMembers)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_user_impression",
		Description: "Returns the stored profile and impression of a single user",
	}, tools.UserImpression)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_users",
		Description: "Lists every user with a stored record, optionally filtered by relationship",
	}, tools.ListUsers)

	log.Info("starting impression MCP server on stdio", "tools", []string{impression.GroupMembersTool, "get_user_impression", "list_users"})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx, mcp.NewStdioTransport()); err != nil {
		log.Error("MCP server stopped", "err", err)
	}
}
