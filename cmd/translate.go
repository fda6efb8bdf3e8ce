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
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/valpere/doctran/internal/orchestrator"
)

var (
	inputFile  string
	outputFile string
	strategy   string

	translateFlags runFlags
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Translate a document",
	Long: `Translate a docx, xlsx, pptx, txt or md document into another language.
Office documents are rewritten in place inside their archive so styles,
tables and images survive; text documents keep their line structure.

Engines are configured through the environment (DEEPSEEK_API_KEY,
KIMI_API_KEY, ...) and may be overridden with "doctran engine set".

Example:
  doctran translate -i report.docx -o report.fr.docx -t fr --engine deepseek`,
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := filepath.Abs(inputFile)
		if err != nil {
			return err
		}
		out, err := filepath.Abs(outputFile)
		if err != nil {
			return err
		}
		if in == out {
			return fmt.Errorf("input file and output file cannot be the same")
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		params, err := translateFlags.params(ctx, db, cmd.Flags().Changed("categories"))
		if err != nil {
			return err
		}

		orch, _ := newPipeline(db)
		meta, err := orch.TranslateDocument(ctx, orchestrator.DocumentRequest{
			InputPath:  inputFile,
			OutputPath: outputFile,
			Strategy:   strategy,
			Params:     params,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Successfully translated %s to %s with %s\n", meta.SourceLang, params.TargetLang, meta.Engine)
		fmt.Printf("Text items: %d/%d translated (%d unique, %d from memory)\n",
			meta.TranslatedTextItems, meta.TotalTextItems, meta.UniqueText, meta.MemoryHits)
		fmt.Printf("Characters: %d, tokens: %d, requests: %d\n", meta.CharacterCount, meta.TokenCount, meta.Requests)
		if meta.Filled > 0 {
			fmt.Printf("Kept source text for %d failed items\n", meta.Filled)
		}
		return nil
	},
}

// addRunFlags registers the translation flags shared by translate and text.
func addRunFlags(cmd *cobra.Command, f *runFlags) {
	cmd.Flags().StringVarP(&f.sourceLang, "source", "s", "auto", "Source language code")
	cmd.Flags().StringVarP(&f.targetLang, "target", "t", "", "Target language code (required)")
	cmd.Flags().StringVar(&f.engine, "engine", "", "Translation engine (default $TRANSLATION_ENGINE or the first available)")
	cmd.Flags().IntVar(&f.workers, "workers", 0, "Parallel requests (default $DOCTRAN_WORKERS or 5)")
	cmd.Flags().StringVar(&f.fallback, "fallback", "", "Failed item policy: fail_fast or fill_with_source")
	cmd.Flags().Int64SliceVar(&f.categories, "categories", nil, "Terminology category ids to apply (comma-separated)")
	cmd.Flags().StringVar(&f.style, "style", "", "Extra style instruction for LLM engines")
	cmd.Flags().StringVar(&f.stylePreset, "style-preset", "", "Style preset name for LLM engines")
	cmd.Flags().StringVar(&f.userID, "user", "", "Owner id whose private glossary terms apply")
	cmd.Flags().BoolVar(&f.verifyLanguage, "verify-language", false, "Re-translate items detected in the wrong language")
	cmd.Flags().BoolVar(&f.useMemory, "memory", false, "Read and update the translation memory")
	cmd.MarkFlagRequired("target")
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&inputFile, "input", "i", "", "Input document (required)")
	translateCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output document (required)")
	translateCmd.Flags().StringVar(&strategy, "strategy", "", "Processing strategy: ooxml_direct or text_direct (default by format)")
	addRunFlags(translateCmd, &translateFlags)

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("output")
}
