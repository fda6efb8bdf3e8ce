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
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/valpere/doctran/internal/store"
	"github.com/valpere/doctran/internal/terminology"
)

// glossaryFile is the yaml layout used by import and export.
type glossaryFile struct {
	Terms []glossaryFileTerm `yaml:"terms"`
}

type glossaryFileTerm struct {
	Source     string `yaml:"source"`
	Target     string `yaml:"target"`
	SourceLang string `yaml:"source_lang"`
	TargetLang string `yaml:"target_lang"`
	Category   string `yaml:"category,omitempty"`
	Owner      string `yaml:"owner,omitempty"`
}

var glossaryCmd = &cobra.Command{
	Use:   "glossary",
	Short: "Manage the terminology glossary",
	Long: `Add, list, import, export and delete terminology entries and categories.

Glossary entries are shielded from the engine during translation and
replaced with their target term afterwards, so proper nouns, brand names
and domain vocabulary come out the same way every time.`,
}

var (
	glossaryListSource   string
	glossaryListTarget   string
	glossaryListCategory string
	glossaryListOwner    string
)

var glossaryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List glossary entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		filter := store.TermFilter{SourceLang: glossaryListSource, TargetLang: glossaryListTarget, OwnerID: glossaryListOwner}
		if glossaryListCategory != "" {
			if filter.CategoryID, err = resolveCategory(ctx, db, glossaryListCategory, false); err != nil {
				return err
			}
		}
		terms, err := db.ListTerms(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}

		if len(terms) == 0 {
			fmt.Println("Glossary is empty.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSOURCE LANG\tTARGET LANG\tCATEGORY\tOWNER\tSOURCE TERM\tTARGET TERM")
		for _, t := range terms {
			fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\t%s\n",
				t.ID, t.SourceLang, t.TargetLang, t.CategoryID, t.OwnerID, t.SourceTerm, t.TargetTerm)
		}
		return w.Flush()
	},
}

var (
	glossaryAddSource   string
	glossaryAddTarget   string
	glossaryAddCategory string
	glossaryAddOwner    string
)

var glossaryAddCmd = &cobra.Command{
	Use:   "add <source-term> <target-term>",
	Short: "Add a glossary entry",
	Long: `Add a glossary entry mapping a source-language term to a target-language term.

Example:
  doctran glossary add "Kyiv" "Kyjiw" --source en --target de --category places`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if glossaryAddSource == "" {
			return fmt.Errorf("--source language flag is required")
		}
		if glossaryAddTarget == "" {
			return fmt.Errorf("--target language flag is required")
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		entry := terminology.Entry{
			SourceTerm: args[0],
			TargetTerm: args[1],
			SourceLang: glossaryAddSource,
			TargetLang: glossaryAddTarget,
			OwnerID:    glossaryAddOwner,
		}
		if glossaryAddCategory != "" {
			if entry.CategoryID, err = resolveCategory(ctx, db, glossaryAddCategory, false); err != nil {
				return err
			}
		}
		id, err := db.AddTerm(ctx, entry)
		if err != nil {
			return fmt.Errorf("failed to add glossary entry: %w", err)
		}
		fmt.Printf("Added %s: [%s→%s] %q → %q\n", id, glossaryAddSource, glossaryAddTarget, args[0], args[1])
		return nil
	},
}

var glossaryDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a glossary entry by ID",
	Long:  `Delete a glossary entry by its ID (shown in "doctran glossary list").`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		if err := db.DeleteTerm(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("failed to delete glossary entry: %w", err)
		}
		fmt.Printf("Deleted glossary entry: %s\n", args[0])
		return nil
	},
}

var glossaryImportCmd = &cobra.Command{
	Use:   "import <file.yaml>",
	Short: "Import glossary entries from a yaml file",
	Long: `Import glossary entries from a yaml file. Unknown categories are created.

File layout:
  terms:
    - source: Kyiv
      target: Kyjiw
      source_lang: en
      target_lang: de
      category: places`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read glossary file: %w", err)
		}
		var file glossaryFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return fmt.Errorf("failed to parse glossary file: %w", err)
		}

		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		added := 0
		for i, t := range file.Terms {
			entry := terminology.Entry{
				SourceTerm: t.Source,
				TargetTerm: t.Target,
				SourceLang: t.SourceLang,
				TargetLang: t.TargetLang,
				OwnerID:    t.Owner,
			}
			if entry.SourceLang == "" || entry.TargetLang == "" {
				return fmt.Errorf("term %d: source_lang and target_lang are required", i+1)
			}
			if t.Category != "" {
				if entry.CategoryID, err = resolveCategory(ctx, db, t.Category, true); err != nil {
					return fmt.Errorf("term %d: %w", i+1, err)
				}
			}
			if _, err := db.AddTerm(ctx, entry); err != nil {
				return fmt.Errorf("term %d: %w", i+1, err)
			}
			added++
		}
		fmt.Printf("Imported %d glossary entries.\n", added)
		return nil
	},
}

var glossaryExportCmd = &cobra.Command{
	Use:   "export [file.yaml]",
	Short: "Export glossary entries as yaml",
	Long:  `Export every glossary entry to a yaml file, or to stdout when no file is given.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		categories, err := db.ListCategories(ctx)
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		names := make(map[int64]string, len(categories))
		for _, c := range categories {
			names[c.ID] = c.Name
		}

		terms, err := db.ListTerms(ctx, store.TermFilter{})
		if err != nil {
			return fmt.Errorf("failed to list glossary: %w", err)
		}
		var file glossaryFile
		for _, t := range terms {
			file.Terms = append(file.Terms, glossaryFileTerm{
				Source:     t.SourceTerm,
				Target:     t.TargetTerm,
				SourceLang: t.SourceLang,
				TargetLang: t.TargetLang,
				Category:   names[t.CategoryID],
				Owner:      t.OwnerID,
			})
		}

		out, err := yaml.Marshal(&file)
		if err != nil {
			return fmt.Errorf("failed to encode glossary: %w", err)
		}
		if len(args) == 0 {
			_, err = os.Stdout.Write(out)
			return err
		}
		if err := os.WriteFile(args[0], out, 0644); err != nil {
			return fmt.Errorf("failed to write glossary file: %w", err)
		}
		fmt.Printf("Exported %d glossary entries to %s\n", len(file.Terms), args[0])
		return nil
	},
}

var glossaryCategoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Manage terminology categories",
}

var glossaryCategoryDescription string

var glossaryCategoryAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a terminology category",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.AddCategory(cmd.Context(), args[0], glossaryCategoryDescription)
		if err != nil {
			return err
		}
		fmt.Printf("Added category %d: %s\n", id, args[0])
		return nil
	},
}

var glossaryCategoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List terminology categories",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openStore()
		if err != nil {
			return err
		}
		defer db.Close()

		categories, err := db.ListCategories(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list categories: %w", err)
		}
		if len(categories) == 0 {
			fmt.Println("No categories.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tDESCRIPTION\tCREATED")
		for _, c := range categories {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", c.ID, c.Name, c.Description, c.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

// resolveCategory accepts a numeric id or a category name. With create set,
// an unknown name is added.
func resolveCategory(ctx context.Context, db *store.Store, ref string, create bool) (int64, error) {
	if id, err := parseID(ref); err == nil {
		missing, err := db.MissingCategories(ctx, []int64{id})
		if err != nil {
			return 0, err
		}
		if len(missing) > 0 {
			return 0, &terminology.CategoryError{IDs: missing}
		}
		return id, nil
	}

	id, err := db.CategoryByName(ctx, ref)
	if errors.Is(err, store.ErrNotFound) && create {
		return db.AddCategory(ctx, ref, "")
	}
	return id, err
}

func init() {
	rootCmd.AddCommand(glossaryCmd)

	glossaryListCmd.Flags().StringVarP(&glossaryListSource, "source", "s", "", "Filter by source language code (e.g. en)")
	glossaryListCmd.Flags().StringVarP(&glossaryListTarget, "target", "t", "", "Filter by target language code (e.g. uk)")
	glossaryListCmd.Flags().StringVar(&glossaryListCategory, "category", "", "Filter by category id or name")
	glossaryListCmd.Flags().StringVar(&glossaryListOwner, "user", "", "Filter by owner id")

	glossaryAddCmd.Flags().StringVarP(&glossaryAddSource, "source", "s", "", "Source language code (e.g. en)")
	glossaryAddCmd.Flags().StringVarP(&glossaryAddTarget, "target", "t", "", "Target language code (e.g. uk)")
	glossaryAddCmd.Flags().StringVar(&glossaryAddCategory, "category", "", "Category id or name")
	glossaryAddCmd.Flags().StringVar(&glossaryAddOwner, "user", "", "Owner id; empty makes the entry public")

	glossaryCategoryAddCmd.Flags().StringVar(&glossaryCategoryDescription, "description", "", "Category description")
	glossaryCategoryCmd.AddCommand(glossaryCategoryAddCmd)
	glossaryCategoryCmd.AddCommand(glossaryCategoryListCmd)

	glossaryCmd.AddCommand(glossaryListCmd)
	glossaryCmd.AddCommand(glossaryAddCmd)
	glossaryCmd.AddCommand(glossaryDeleteCmd)
	glossaryCmd.AddCommand(glossaryImportCmd)
	glossaryCmd.AddCommand(glossaryExportCmd)
	glossaryCmd.AddCommand(glossaryCategoryCmd)
}
