package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/valpere/doctran/internal/terminology"
)

// Category groups glossary terms.
type Category struct {
	ID          int64
	Name        string
	Description string
	CreatedAt   time.Time
}

// Term is a stored glossary row.
type Term struct {
	ID string
	terminology.Entry
	CreatedAt time.Time
}

// TermFilter narrows ListTerms. Zero fields do not filter.
type TermFilter struct {
	SourceLang string
	TargetLang string
	CategoryID int64
	OwnerID    string
}

func (s *Store) AddCategory(ctx context.Context, name, description string) (int64, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return 0, fmt.Errorf("category name is required")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO terminology_categories (name, description) VALUES (?, ?)`,
		name, description)
	if err != nil {
		return 0, fmt.Errorf("failed to add category %q: %w", name, err)
	}
	return res.LastInsertId()
}

func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, created_at FROM terminology_categories ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Description, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CategoryByName returns the id of the named category.
func (s *Store) CategoryByName(ctx context.Context, name string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM terminology_categories WHERE name = ?`, strings.TrimSpace(name)).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("category %q: %w", name, notFound(err))
	}
	return id, nil
}

// MissingCategories returns, in request order, the ids that do not exist.
func (s *Store) MissingCategories(ctx context.Context, ids []int64) ([]int64, error) {
	var missing []int64
	for _, id := range ids {
		var n int
		if err := s.db.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM terminology_categories WHERE id = ?`, id).Scan(&n); err != nil {
			return nil, err
		}
		if n == 0 {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

// AddTerm inserts or replaces a glossary term and returns its id.
func (s *Store) AddTerm(ctx context.Context, e terminology.Entry) (string, error) {
	if strings.TrimSpace(e.SourceTerm) == "" || strings.TrimSpace(e.TargetTerm) == "" {
		return "", fmt.Errorf("source and target terms are required")
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO terminology (id, source_lang, target_lang, source_term, target_term, category_id, owner_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, normalizeLang(e.SourceLang), normalizeLang(e.TargetLang), e.SourceTerm, e.TargetTerm, e.CategoryID, e.OwnerID)
	if err != nil {
		return "", fmt.Errorf("failed to add term %q: %w", e.SourceTerm, err)
	}
	return id, nil
}

// TermsForPair returns every term for the language pair regardless of owner
// or category.
func (s *Store) TermsForPair(ctx context.Context, srcLang, tgtLang string) ([]terminology.Entry, error) {
	terms, err := s.ListTerms(ctx, TermFilter{SourceLang: srcLang, TargetLang: tgtLang})
	if err != nil {
		return nil, err
	}
	out := make([]terminology.Entry, len(terms))
	for i, t := range terms {
		out[i] = t.Entry
	}
	return out, nil
}

func (s *Store) ListTerms(ctx context.Context, f TermFilter) ([]Term, error) {
	query := `SELECT id, source_lang, target_lang, source_term, target_term, category_id, owner_id, created_at FROM terminology`
	var (
		where []string
		args  []any
	)
	if f.SourceLang != "" {
		where = append(where, "source_lang = ?")
		args = append(args, normalizeLang(f.SourceLang))
	}
	if f.TargetLang != "" {
		where = append(where, "target_lang = ?")
		args = append(args, normalizeLang(f.TargetLang))
	}
	if f.CategoryID != 0 {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.OwnerID != "" {
		where = append(where, "owner_id = ?")
		args = append(args, f.OwnerID)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += ` ORDER BY source_lang, target_lang, source_term`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Term
	for rows.Next() {
		var t Term
		if err := rows.Scan(&t.ID, &t.SourceLang, &t.TargetLang, &t.SourceTerm, &t.TargetTerm,
			&t.CategoryID, &t.OwnerID, &t.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *Store) DeleteTerm(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM terminology WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return checkAffected(res, "term", id)
}
