// Package app wires the bot's subsystems together and owns its lifecycle.
package app

import (
	"errors"
	"fmt"

	"github.com/small-frappuccino/confessbot/pkg/discord/commands"
	"github.com/small-frappuccino/confessbot/pkg/discord/session"
	"github.com/small-frappuccino/confessbot/pkg/errutil"
	"github.com/small-frappuccino/confessbot/pkg/files"
	"github.com/small-frappuccino/confessbot/pkg/log"
	"github.com/small-frappuccino/confessbot/pkg/storage"
	"github.com/small-frappuccino/confessbot/pkg/task"
	"github.com/small-frappuccino/confessbot/pkg/util"
)

// Run starts the bot and blocks until an interrupt arrives. appName scopes
// the config and cache directories; tokenEnvName names the environment
// variable holding the bot token.
func Run(appName, tokenEnvName string) error {
	util.SetAppName(appName)
	util.SetAppVersion(Version)

	token, err := util.LoadEnvWithLocalBinFallback(tokenEnvName)
	if err != nil {
		return fmt.Errorf("load environment: %w", err)
	}

	if err := log.SetupLogger(); err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer log.GlobalLogger.Sync()

	if err := errutil.InitializeGlobalErrorHandler(log.GlobalLogger); err != nil {
		return fmt.Errorf("initialize error handler: %w", err)
	}

	log.ApplicationLogger().Info("Starting bot", "app", appName, "version", Version)

	if err := files.EnsureSettingsFile(); err != nil {
		return fmt.Errorf("ensure settings file: %w", err)
	}

	configManager := files.NewConfigManager()
	if err := configManager.LoadConfig(); err != nil {
		// A malformed settings file is never silently replaced with defaults;
		// the operator has to look at it.
		var cfgErr *files.ConfigError
		if errors.As(err, &cfgErr) && cfgErr.Operation == "parse" {
			return fmt.Errorf("settings file is malformed, refusing to start: %w", err)
		}
		return fmt.Errorf("load config: %w", err)
	}
	log.GlobalLogger.SetLevel(configManager.LogLevel())

	journal := storage.NewJournal(util.GetJournalDBPath())
	if err := journal.Init(); err != nil {
		return fmt.Errorf("init journal: %w", err)
	}
	defer journal.Close()

	taskRouter := task.NewRouter(task.Defaults())
	defer taskRouter.Close()

	s, err := session.NewDiscordSession(token)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.DiscordLogger().Warn("Error closing Discord session", "error", err)
		}
	}()

	if s.State != nil && s.State.User != nil {
		util.SetBotName(s.State.User.Username)
		if err := configManager.SetClientID(s.State.User.ID); err != nil {
			log.ApplicationLogger().Warn("Failed to persist client ID", "error", err)
		}
	}

	handler := commands.NewCommandHandler(s, configManager, journal, taskRouter)
	if err := handler.Setup(); err != nil {
		return err
	}

	log.ApplicationLogger().Info("Bot is running. Press Ctrl+C to exit.")
	util.WaitForInterrupt()

	log.ApplicationLogger().Info("Shutting down")
	return nil
}
