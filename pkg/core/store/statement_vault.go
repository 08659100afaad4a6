package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"portfolio_financials/pkg/core/estimate"
	"portfolio_financials/pkg/core/statement"
)

// ErrNotFound is returned when no stored statement matches.
var ErrNotFound = errors.New("statement not found")

// StatementVault stores caller-persisted statements.
// Supports Hybrid Vault: DB (Primary) + File System (Fallback/Local)
type StatementVault struct {
	pool    *pgxpool.Pool
	fileDir string
}

// NewStatementVault writes to pool when set and to dir when set. With neither,
// it falls back to a local .cache directory.
func NewStatementVault(pool *pgxpool.Pool, dir string) (*StatementVault, error) {
	if pool == nil && dir == "" {
		dir = filepath.Join(".cache", "statements")
	}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create vault dir %s: %w", dir, err)
		}
	}
	return &StatementVault{pool: pool, fileDir: dir}, nil
}

// Entry is one persisted extraction outcome.
type Entry struct {
	ID               string                `json:"id"`
	PropertyCode     string                `json:"property_code"`
	StatementType    statement.Type        `json:"statement_type"`
	PeriodKey        string                `json:"period_key"`
	DataCompleteness estimate.Completeness `json:"data_completeness"`
	DataSource       string                `json:"data_source"`
	Outcome          estimate.Outcome      `json:"outcome"`
	CreatedAt        time.Time             `json:"created_at"`
}

// NewEntry describes an outcome for storage under a fresh id.
func NewEntry(propertyCode string, out estimate.Outcome) Entry {
	e := Entry{
		ID:               uuid.New().String(),
		PropertyCode:     propertyCode,
		DataCompleteness: out.Completeness(),
		DataSource:       estimate.SourcePrimary,
		Outcome:          out,
		CreatedAt:        time.Now().UTC(),
	}
	switch {
	case out.Estimate != nil:
		e.StatementType = out.Estimate.Type
		e.PeriodKey = out.Estimate.PeriodKey
		e.DataSource = out.Estimate.DataSource
	case out.Statement != nil:
		e.StatementType = out.Statement.Type
		e.PeriodKey = out.Statement.PeriodKey
	}
	return e
}

// Save stores the outcome and returns its entry.
func (v *StatementVault) Save(ctx context.Context, propertyCode string, out estimate.Outcome) (Entry, error) {
	if propertyCode == "" {
		return Entry{}, fmt.Errorf("property code is required")
	}
	entry := NewEntry(propertyCode, out)

	outcomeJSON, err := json.Marshal(out)
	if err != nil {
		return Entry{}, fmt.Errorf("failed to marshal outcome: %w", err)
	}

	// 1. Save to DB
	if v.pool != nil {
		query := `
			INSERT INTO property_statements (
				id, property_code, statement_type, period_key,
				data_completeness, data_source, outcome, created_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`
		_, err = v.pool.Exec(ctx, query,
			entry.ID, entry.PropertyCode, string(entry.StatementType), entry.PeriodKey,
			string(entry.DataCompleteness), entry.DataSource, outcomeJSON, entry.CreatedAt,
		)
		if err != nil {
			return Entry{}, fmt.Errorf("failed to save statement to db: %w", err)
		}
	}

	// 2. Save to File
	if v.fileDir != "" {
		fileBytes, err := json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return Entry{}, fmt.Errorf("failed to marshal entry: %w", err)
		}
		if err := os.WriteFile(v.entryPath(entry.ID), fileBytes, 0o644); err != nil {
			return Entry{}, fmt.Errorf("failed to save statement to file: %w", err)
		}
	}
	return entry, nil
}

// Get loads an entry by id.
func (v *StatementVault) Get(ctx context.Context, id string) (Entry, error) {
	if _, err := uuid.Parse(id); err != nil {
		return Entry{}, fmt.Errorf("invalid statement id %q: %w", id, err)
	}

	// 1. Try DB
	if v.pool != nil {
		query := `
			SELECT id, property_code, statement_type, period_key,
			       data_completeness, data_source, outcome, created_at
			FROM property_statements WHERE id = $1
		`
		entry, err := scanEntry(v.pool.QueryRow(ctx, query, id))
		if err == nil {
			return entry, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, fmt.Errorf("failed to load statement: %w", err)
		}
	}

	// 2. Try File
	if v.fileDir != "" {
		entry, err := v.loadEntry(v.entryPath(id))
		if err == nil {
			return *entry, nil
		}
	}
	return Entry{}, ErrNotFound
}

// List returns a property's entries, newest first.
func (v *StatementVault) List(ctx context.Context, propertyCode string) ([]Entry, error) {
	if v.pool != nil {
		query := `
			SELECT id, property_code, statement_type, period_key,
			       data_completeness, data_source, outcome, created_at
			FROM property_statements WHERE property_code = $1
			ORDER BY created_at DESC
		`
		rows, err := v.pool.Query(ctx, query, propertyCode)
		if err != nil {
			return nil, fmt.Errorf("failed to list statements: %w", err)
		}
		defer rows.Close()

		var entries []Entry
		for rows.Next() {
			entry, err := scanEntry(rows)
			if err != nil {
				return nil, fmt.Errorf("failed to scan statement: %w", err)
			}
			entries = append(entries, entry)
		}
		return entries, rows.Err()
	}

	return v.scanFiles(func(e *Entry) bool {
		return strings.EqualFold(e.PropertyCode, propertyCode)
	})
}

// Latest returns the newest entry for a property, statement type and period.
func (v *StatementVault) Latest(ctx context.Context, propertyCode string, t statement.Type, periodKey string) (Entry, error) {
	entries, err := v.List(ctx, propertyCode)
	if err != nil {
		return Entry{}, err
	}
	for _, e := range entries {
		if e.StatementType == t && e.PeriodKey == periodKey {
			return e, nil
		}
	}
	return Entry{}, ErrNotFound
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (Entry, error) {
	var (
		entry                   Entry
		statementType, complete string
		outcomeJSON             []byte
	)
	err := row.Scan(&entry.ID, &entry.PropertyCode, &statementType, &entry.PeriodKey,
		&complete, &entry.DataSource, &outcomeJSON, &entry.CreatedAt)
	if err != nil {
		return Entry{}, err
	}
	entry.StatementType = statement.Type(statementType)
	entry.DataCompleteness = estimate.Completeness(complete)
	if err := json.Unmarshal(outcomeJSON, &entry.Outcome); err != nil {
		return Entry{}, fmt.Errorf("failed to unmarshal outcome: %w", err)
	}
	return entry, nil
}

// Internal File Helpers

func (v *StatementVault) entryPath(id string) string {
	return filepath.Join(v.fileDir, id+".json")
}

func (v *StatementVault) loadEntry(path string) (*Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (v *StatementVault) scanFiles(match func(*Entry) bool) ([]Entry, error) {
	if v.fileDir == "" {
		return nil, nil
	}
	files, err := os.ReadDir(v.fileDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read vault dir: %w", err)
	}

	var entries []Entry
	for _, f := range files {
		if filepath.Ext(f.Name()) != ".json" {
			continue
		}
		entry, err := v.loadEntry(filepath.Join(v.fileDir, f.Name()))
		if err != nil {
			continue
		}
		if match(entry) {
			entries = append(entries, *entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].CreatedAt.After(entries[j].CreatedAt)
	})
	return entries, nil
}
