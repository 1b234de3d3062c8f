package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"profitloss-backend/internal/config"
	"profitloss-backend/internal/infrastructure/database"
	"profitloss-backend/internal/pkg/logging"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

// cli carries the viper instance shared by every subcommand.
type cli struct {
	v       *viper.Viper
	cfgFile string
}

func newRootCmd() *cobra.Command {
	c := &cli{v: viper.New()}
	root := &cobra.Command{
		Use:           "plctl",
		Short:         "Project profit/loss administration tool",
		Long:          "plctl manages the project profit/loss database: migrations, sample data, backups and spreadsheet imports.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			return c.initConfig()
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", "env file to load (default: .env when present)")
	root.PersistentFlags().String("database-url", "", "SQLite path or postgres:// URL (overrides DATABASE_URL)")
	root.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	_ = c.v.BindPFlag("DATABASE_URL", root.PersistentFlags().Lookup("database-url"))
	_ = c.v.BindPFlag("LOG_LEVEL", root.PersistentFlags().Lookup("log-level"))

	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.seedCmd())
	root.AddCommand(c.backupCmd())
	root.AddCommand(c.importCmd())
	return root
}

func (c *cli) initConfig() error {
	if c.cfgFile != "" {
		c.v.SetConfigFile(c.cfgFile)
		c.v.SetConfigType("env")
		if err := c.v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		c.v.SetConfigFile(".env")
		c.v.SetConfigType("env")
		_ = c.v.ReadInConfig()
	}
	c.v.AutomaticEnv()
	cfg := c.config()
	logging.Setup(cfg.LogLevel, true)
	return nil
}

func (c *cli) config() *config.Config {
	return config.FromViper(c.v)
}

// openDB opens and migrates the configured database.
func (c *cli) openDB() (*gorm.DB, error) {
	db, err := database.Open(c.config().DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
