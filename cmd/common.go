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
	"path/filepath"
	"strconv"
	"strings"

	"github.com/valpere/doctran/internal/batch"
	"github.com/valpere/doctran/internal/orchestrator"
	"github.com/valpere/doctran/internal/store"
	"github.com/valpere/doctran/internal/terminology"
	"github.com/valpere/doctran/internal/translator"
)

// openStore opens the configured database, creating its directory first.
func openStore() (*store.Store, error) {
	if dir := filepath.Dir(cfg.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	db, err := store.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	return db, nil
}

// newPipeline wires the registry, terminology, memory and job history
// around db.
func newPipeline(db *store.Store) (*orchestrator.Orchestrator, *translator.Registry) {
	registry := translator.NewRegistry(db)
	protector := terminology.New(db, cfg.TerminologyCacheTTL())
	orch := orchestrator.New(registry, logger,
		orchestrator.WithTerminology(protector),
		orchestrator.WithMemory(db),
		orchestrator.WithRecorder(db),
	)
	return orch, registry
}

// runFlags are the translation flags shared by translate and text.
type runFlags struct {
	sourceLang     string
	targetLang     string
	engine         string
	workers        int
	fallback       string
	categories     []int64
	style          string
	stylePreset    string
	userID         string
	verifyLanguage bool
	useMemory      bool
}

func (f *runFlags) params(ctx context.Context, db *store.Store, categoriesSet bool) (orchestrator.Params, error) {
	policy, err := batch.ParsePolicy(cfg.FallbackPolicy)
	if f.fallback != "" {
		policy, err = batch.ParsePolicy(f.fallback)
	}
	if err != nil {
		return orchestrator.Params{}, err
	}

	ts, err := db.TerminologySettings(ctx)
	if err != nil {
		return orchestrator.Params{}, fmt.Errorf("failed to read terminology settings: %w", err)
	}

	p := orchestrator.Params{
		SourceLang:       f.sourceLang,
		TargetLang:       f.targetLang,
		Engine:           f.engine,
		StyleInstruction: f.style,
		StylePreset:      f.stylePreset,
		UserID:           f.userID,
		Workers:          cfg.Workers,
		Policy:           policy,
		Terminology: terminology.Options{
			Enabled:       ts.Enabled,
			CaseSensitive: ts.CaseSensitive,
			MaxCategories: ts.MaxCategories,
		},
		VerifyLanguage: f.verifyLanguage,
		UseMemory:      f.useMemory,
	}
	if p.Engine == "" {
		p.Engine = cfg.DefaultEngine
	}
	if f.workers > 0 {
		p.Workers = f.workers
	}
	if categoriesSet && ts.CategoriesEnabled {
		p.CategoryIDs = f.categories
		if p.CategoryIDs == nil {
			p.CategoryIDs = []int64{}
		}
	}
	return p, nil
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
