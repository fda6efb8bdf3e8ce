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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/valpere/doctran/internal/orchestrator"
)

var textFlags runFlags

var textCmd = &cobra.Command{
	Use:   "text <text>...",
	Short: "Translate short texts and print the results",
	Long: `Translate each argument and print one translation per line.

Example:
  doctran text -s en -t fr "Hello" "World"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		params, err := textFlags.params(ctx, db, cmd.Flags().Changed("categories"))
		if err != nil {
			return err
		}

		orch, _ := newPipeline(db)
		out, meta, err := orch.TranslateTexts(ctx, orchestrator.TextRequest{Texts: args, Params: params})
		if err != nil {
			return err
		}
		for _, t := range out {
			fmt.Println(t)
		}
		logger.Debug().
			Str("engine", meta.Engine).
			Int("tokens", meta.TokenCount).
			Int("translated", meta.TranslatedTextItems).
			Msg("texts translated")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(textCmd)
	addRunFlags(textCmd, &textFlags)
}
