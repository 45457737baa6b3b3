package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/kirillkom/flipscout/internal/core/domain"
	"github.com/kirillkom/flipscout/internal/core/ports"
)

var _ ports.ScanRepository = (*ScanRepository)(nil)

type ScanRepository struct {
	db  *sql.DB
	now func() time.Time
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db, now: func() time.Time { return time.Now().UTC() }}
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026100101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	category_hint TEXT NOT NULL DEFAULT '',
	text TEXT NOT NULL DEFAULT '',
	listing_url TEXT NOT NULL DEFAULT '',
	photo_path TEXT NOT NULL DEFAULT '',
	mime_type TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	error_message TEXT NOT NULL DEFAULT '',
	visual JSONB,
	identification JSONB,
	confirmed_candidate_id TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_status ON scans(status);
CREATE INDEX IF NOT EXISTS idx_scans_created_at ON scans(created_at DESC);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *ScanRepository) Create(ctx context.Context, scan *domain.ScanSession) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO scans (
	id, input, category_hint, text, listing_url, photo_path, mime_type, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
`,
		scan.ID, string(scan.Input), string(scan.CategoryHint), scan.Text, scan.ListingURL, scan.PhotoPath,
		scan.MimeType, string(scan.Status), scan.Error, scan.CreatedAt, scan.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

func (r *ScanRepository) GetByID(ctx context.Context, id string) (*domain.ScanSession, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, input, category_hint, text, listing_url, photo_path, mime_type, status, error_message,
	visual, identification, confirmed_candidate_id, created_at, updated_at
FROM scans
WHERE id = $1
`, id)

	var (
		scan                         domain.ScanSession
		input, category, status      string
		visualRaw, identificationRaw []byte
	)
	err := row.Scan(
		&scan.ID, &input, &category, &scan.Text, &scan.ListingURL, &scan.PhotoPath, &scan.MimeType, &status, &scan.Error,
		&visualRaw, &identificationRaw, &scan.ConfirmedCandidateID, &scan.CreatedAt, &scan.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrScanNotFound, "get scan", fmt.Errorf("id=%s", id))
		}
		return nil, fmt.Errorf("scan row: %w", err)
	}
	scan.Input = domain.ScanInput(input)
	scan.CategoryHint = domain.Category(category)
	scan.Status = domain.ScanStatus(status)

	if len(visualRaw) > 0 {
		scan.Visual = &domain.VisualMatchSession{}
		if err := json.Unmarshal(visualRaw, scan.Visual); err != nil {
			return nil, fmt.Errorf("unmarshal visual match: %w", err)
		}
	}
	if len(identificationRaw) > 0 {
		scan.Identification = &domain.IdentificationPipelineResult{}
		if err := json.Unmarshal(identificationRaw, scan.Identification); err != nil {
			return nil, fmt.Errorf("unmarshal identification: %w", err)
		}
	}
	return &scan, nil
}

// UpdateStatus never touches a confirmed scan.
func (r *ScanRepository) UpdateStatus(ctx context.Context, id string, status domain.ScanStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1 AND status <> 'confirmed'
`, id, string(status), errMessage, r.now())
	if err != nil {
		return fmt.Errorf("update scan status: %w", err)
	}
	return r.requireRow(ctx, res, id, "update scan status")
}

func (r *ScanRepository) SaveResult(ctx context.Context, id string, visual *domain.VisualMatchSession, result *domain.IdentificationPipelineResult) error {
	visualJSON, err := marshalNullable(visual)
	if err != nil {
		return fmt.Errorf("marshal visual match: %w", err)
	}
	resultJSON, err := marshalNullable(result)
	if err != nil {
		return fmt.Errorf("marshal identification: %w", err)
	}

	res, err := r.db.ExecContext(ctx, `
UPDATE scans
SET visual = $2, identification = $3, status = $4, error_message = '', updated_at = $5
WHERE id = $1 AND status <> 'confirmed'
`, id, visualJSON, resultJSON, string(domain.ScanReady), r.now())
	if err != nil {
		return fmt.Errorf("save scan result: %w", err)
	}
	return r.requireRow(ctx, res, id, "save scan result")
}

// Confirm moves a ready scan to confirmed. It succeeds at most once per scan.
func (r *ScanRepository) Confirm(ctx context.Context, id, candidateID string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE scans
SET status = $2, confirmed_candidate_id = $3, updated_at = $4
WHERE id = $1 AND status = 'ready'
`, id, string(domain.ScanConfirmed), candidateID, r.now())
	if err != nil {
		return fmt.Errorf("confirm scan: %w", err)
	}
	return r.requireRow(ctx, res, id, "confirm scan")
}

// requireRow turns a zero-row update into ErrScanNotFound or ErrConflict.
func (r *ScanRepository) requireRow(ctx context.Context, res sql.Result, id, operation string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", operation, err)
	}
	if affected > 0 {
		return nil
	}

	var status string
	err = r.db.QueryRowContext(ctx, `SELECT status FROM scans WHERE id = $1`, id).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.WrapError(domain.ErrScanNotFound, operation, fmt.Errorf("id=%s", id))
	}
	if err != nil {
		return fmt.Errorf("%s lookup: %w", operation, err)
	}
	return domain.WrapError(domain.ErrConflict, operation, fmt.Errorf("scan %s is %s", id, status))
}

// marshalNullable returns an untyped nil for nil pointers so the column stores NULL.
func marshalNullable(v any) (any, error) {
	switch t := v.(type) {
	case *domain.VisualMatchSession:
		if t == nil {
			return nil, nil
		}
	case *domain.IdentificationPipelineResult:
		if t == nil {
			return nil, nil
		}
	}
	return json.Marshal(v)
}
