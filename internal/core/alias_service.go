package core

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AliasService is the engine's learning mechanism: every confirmed receipt
// records how a supplier phrases a catalog item, so the same phrasing
// matches instantly the next time it appears on an invoice.
//
// Callers must treat lookup failures as "no aliases" and fall back to fuzzy
// matching; alias availability is never allowed to block a session.
type AliasService interface {
	// LoadAliases returns all learned aliases for in-memory matching
	// (LookupAlias / MatchCatalog).
	LoadAliases(ctx context.Context) ([]SupplierAlias, error)
	// Record upserts one (catalogItemID, lineText) pair, incrementing the
	// occurrence count when the pair already exists. Counts only grow and
	// rows are never deleted here.
	Record(ctx context.Context, catalogItemID int, lineText, supplierName string) error
	// RecordTx is Record inside a caller-owned transaction, used by the
	// receipt committer to keep alias learning atomic with the commit.
	RecordTx(ctx context.Context, tx pgx.Tx, catalogItemID int, lineText, supplierName string) error
}

type aliasService struct {
	pool *pgxpool.Pool
}

// NewAliasService constructs an AliasService backed by PostgreSQL.
func NewAliasService(pool *pgxpool.Pool) AliasService {
	return &aliasService{pool: pool}
}

func (s *aliasService) LoadAliases(ctx context.Context) ([]SupplierAlias, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, catalog_item_id, line_text, occurrence_count,
		       last_seen_supplier_name, updated_at
		FROM supplier_aliases
		ORDER BY occurrence_count DESC, catalog_item_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("load aliases: %w", err)
	}
	defer rows.Close()

	var aliases []SupplierAlias
	for rows.Next() {
		var a SupplierAlias
		if err := rows.Scan(
			&a.ID, &a.CatalogItemID, &a.LineText, &a.OccurrenceCount,
			&a.LastSeenSupplierName, &a.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan alias: %w", err)
		}
		aliases = append(aliases, a)
	}
	return aliases, rows.Err()
}

const recordAliasSQL = `
	INSERT INTO supplier_aliases (catalog_item_id, line_text, occurrence_count, last_seen_supplier_name)
	VALUES ($1, $2, 1, $3)
	ON CONFLICT (catalog_item_id, line_text)
	DO UPDATE SET occurrence_count        = supplier_aliases.occurrence_count + 1,
	              last_seen_supplier_name = EXCLUDED.last_seen_supplier_name,
	              updated_at              = NOW()`

func (s *aliasService) Record(ctx context.Context, catalogItemID int, lineText, supplierName string) error {
	if _, err := s.pool.Exec(ctx, recordAliasSQL, catalogItemID, lineText, supplierName); err != nil {
		return fmt.Errorf("record alias for catalog item %d: %w", catalogItemID, err)
	}
	return nil
}

func (s *aliasService) RecordTx(ctx context.Context, tx pgx.Tx, catalogItemID int, lineText, supplierName string) error {
	if _, err := tx.Exec(ctx, recordAliasSQL, catalogItemID, lineText, supplierName); err != nil {
		return fmt.Errorf("record alias for catalog item %d: %w", catalogItemID, err)
	}
	return nil
}
