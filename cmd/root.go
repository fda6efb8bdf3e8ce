/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/valpere/doctran/internal/config"
	"github.com/valpere/doctran/internal/logging"
)

var version = "0.1.0"

var (
	cfgFile string
	envFile string

	cfg    *config.Config
	logger zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "doctran",
	Short: "Document translator",
	Long: `A CLI application that translates docx, xlsx, pptx, txt and md documents
while keeping their layout, using one of several translation engines.

Supported engines: deepseek, kimi, qwen_plus, qwen3, chatgpt, openrouter,
tencent, youdao, google, ollama

Use "doctran translate --help" for translation options.`,
	Version:      version,
	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

// initConfig layers the configuration: .env file, environment defaults,
// optional --config file, then command-line flags.
func initConfig(cmd *cobra.Command) error {
	if _, err := config.LoadEnvFile(envFile); err != nil {
		return err
	}
	c, err := config.Load()
	if err != nil {
		return err
	}

	v := viper.New()
	v.SetDefault("db", c.DBPath)
	v.SetDefault("log-level", c.LogLevel)
	v.SetDefault("engine", c.DefaultEngine)
	v.SetDefault("workers", c.Workers)
	v.SetDefault("fallback", c.FallbackPolicy)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read config file: %w", err)
		}
	}
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("failed to bind flags: %w", err)
	}

	c.DBPath = v.GetString("db")
	c.LogLevel = v.GetString("log-level")
	c.DefaultEngine = v.GetString("engine")
	c.Workers = v.GetInt("workers")
	c.FallbackPolicy = v.GetString("fallback")
	if err := c.Validate(); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}

	l, err := logging.New(c.Environment, c.LogLevel)
	if err != nil {
		return err
	}
	cfg, logger = c, l
	return nil
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "Environment file to load (default .env)")
	rootCmd.PersistentFlags().String("db", "", "Database path (default $DOCTRAN_DB_PATH or ./data/doctran.db)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level (default $LOG_LEVEL or info)")
}
