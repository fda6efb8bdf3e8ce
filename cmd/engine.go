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
	"encoding/json"
	"fmt"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/valpere/doctran/internal/translator"
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Inspect and override engine configuration",
	Long: `List engines, show their merged configuration and persist overrides.

An engine's configuration is built from compiled-in defaults, then its
environment variables (for example DEEPSEEK_API_KEY, DEEPSEEK_BATCH_SIZE),
then the override stored with "doctran engine set".`,
}

var engineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List engines and whether they are usable",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		_, registry := newPipeline(db)
		available := registry.Available(ctx)
		overridden, err := db.EngineOverrideNames(ctx)
		if err != nil {
			return fmt.Errorf("failed to list overrides: %w", err)
		}
		def := cfg.DefaultEngine
		if def == "" {
			def = registry.DefaultEngine(ctx)
		}
		def = translator.NormalizeName(def)

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ENGINE\tAVAILABLE\tOVERRIDE\tDEFAULT")
		for _, n := range registry.Names() {
			fmt.Fprintf(w, "%s\t%v\t%v\t%v\n", n, slices.Contains(available, n), slices.Contains(overridden, n), n == def)
		}
		return w.Flush()
	},
}

var engineShowCmd = &cobra.Command{
	Use:   "show <engine>",
	Short: "Show the merged configuration of an engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		_, registry := newPipeline(db)
		c, err := registry.Config(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		rows := [][2]string{
			{"name", c.Name},
			{"api_url", c.APIURL},
			{"api_key", mask(c.APIKey)},
			{"app_id", c.AppID},
			{"app_secret", mask(c.AppSecret)},
			{"credentials_file", c.CredentialsFile},
			{"model", c.Model},
			{"max_workers", fmt.Sprint(c.MaxWorkers)},
			{"batch_size", fmt.Sprint(c.BatchSize)},
			{"json_batch_size", fmt.Sprint(c.JSONBatchSize)},
			{"max_batch_chars", fmt.Sprint(c.MaxBatchChars)},
			{"timeout", c.Timeout.String()},
			{"retry_max", fmt.Sprint(c.RetryMax)},
			{"request_delay", c.RequestDelay.String()},
			{"sequential", fmt.Sprint(c.Sequential)},
			{"use_json_format", fmt.Sprint(c.JSONMode)},
			{"temperature", fmt.Sprint(c.Temperature)},
			{"max_tokens", fmt.Sprint(c.MaxTokens)},
			{"join_single_overflow", fmt.Sprint(c.JoinSingleOverflow)},
		}
		for _, r := range rows {
			fmt.Fprintf(w, "%s\t%s\n", r[0], r[1])
		}
		return w.Flush()
	},
}

var engineSetCmd = &cobra.Command{
	Use:   "set <engine> <key=value>...",
	Short: "Store override values for an engine",
	Long: `Store override values for an engine. Keys are snake_case config names
(api_url, api_key, model, batch_size, timeout, sequential, ...). An empty
value removes the key from the override.

Example:
  doctran engine set deepseek batch_size=20 timeout=90 use_json_format=true`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		_, registry := newPipeline(db)
		name := translator.NormalizeName(args[0])
		if !slices.Contains(registry.Names(), name) {
			return fmt.Errorf("%w: %q", translator.ErrUnknownEngine, args[0])
		}

		current := map[string]any{}
		raw, found, err := db.EngineOverride(ctx, name)
		if err != nil {
			return err
		}
		if found {
			if err := json.Unmarshal(raw, &current); err != nil {
				return fmt.Errorf("stored override for %s is corrupt: %w", name, err)
			}
		}

		for _, kv := range args[1:] {
			key, value, ok := strings.Cut(kv, "=")
			key = strings.TrimSpace(key)
			if !ok || key == "" {
				return fmt.Errorf("expected key=value, got %q", kv)
			}
			if value == "" {
				delete(current, key)
				continue
			}
			current[key] = value
		}

		updated, err := json.Marshal(current)
		if err != nil {
			return err
		}
		if _, err := translator.ValidateOverride(updated); err != nil {
			return err
		}
		if err := db.SetEngineOverride(ctx, name, updated); err != nil {
			return fmt.Errorf("failed to store override: %w", err)
		}
		fmt.Printf("Updated override for %s\n", name)
		return nil
	},
}

var engineResetCmd = &cobra.Command{
	Use:   "reset <engine>",
	Short: "Remove the stored override of an engine",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		name := translator.NormalizeName(args[0])
		if err := db.DeleteEngineOverride(cmd.Context(), name); err != nil {
			return fmt.Errorf("failed to reset %s: %w", name, err)
		}
		fmt.Printf("Removed override for %s\n", name)
		return nil
	},
}

func mask(secret string) string {
	if secret == "" {
		return ""
	}
	if len(secret) <= 8 {
		return "****"
	}
	return secret[:4] + "****" + secret[len(secret)-4:]
}

func init() {
	rootCmd.AddCommand(engineCmd)

	engineCmd.AddCommand(engineListCmd)
	engineCmd.AddCommand(engineShowCmd)
	engineCmd.AddCommand(engineSetCmd)
	engineCmd.AddCommand(engineResetCmd)
}
