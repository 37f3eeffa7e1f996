package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/internal/domain/models"
	pkgch "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/clickhouse"
	applogger "github.com/Dizzy2Dizzy/ImpactRadarV2-sub003/pkg/logger"
)

// CHModelRegistry implements ModelRegistry backed by ClickHouse. Status
// transitions are row re-inserts on ReplacingMergeTree(updated_at), so reads
// go through FINAL.
type CHModelRegistry struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHModelRegistry(ch *pkgch.Client, database string) *CHModelRegistry {
	if database == "" {
		database = "impactradar"
	}
	return &CHModelRegistry{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (r *CHModelRegistry) SetLogger(l *applogger.Logger) { r.l = l }

func (r *CHModelRegistry) Register(ctx context.Context, e *models.ModelRegistryEntry) error {
	if err := r.insert(ctx, e, time.Now()); err != nil {
		return fmt.Errorf("register model: %w", err)
	}
	if r.l != nil {
		r.l.Info("model registered",
			applogger.String("name", e.Name),
			applogger.String("version", e.Version),
			applogger.String("status", e.Status),
		)
	}
	return nil
}

// Promote marks (name, version) active and retires the previous active entry
// for the name.
func (r *CHModelRegistry) Promote(ctx context.Context, name, version string, at time.Time) error {
	prev, err := r.Active(ctx, name)
	if err != nil {
		return err
	}

	next, err := r.get(ctx, name, version)
	if err != nil {
		return err
	}
	if next == nil {
		return fmt.Errorf("promote: unknown model %s version %s", name, version)
	}

	if prev != nil && prev.Version != version {
		prev.Status = models.ModelStatusRetired
		if err := r.insert(ctx, prev, at); err != nil {
			return fmt.Errorf("retire previous active: %w", err)
		}
	}

	next.Status = models.ModelStatusActive
	next.PromotedAt = &at
	if err := r.insert(ctx, next, at); err != nil {
		return fmt.Errorf("promote model: %w", err)
	}

	if r.l != nil {
		r.l.Info("model promoted",
			applogger.String("name", name),
			applogger.String("version", version),
		)
	}
	return nil
}

func (r *CHModelRegistry) Active(ctx context.Context, name string) (*models.ModelRegistryEntry, error) {
	q := fmt.Sprintf(`
        SELECT name, version, status, artifact_id, metrics,
               feature_version, trained_at, promoted_at
        FROM %s.model_registry FINAL
        WHERE name = ? AND status = ?
        ORDER BY trained_at DESC
        LIMIT 1
    `, r.database)
	return r.scanOne(r.db.QueryRowContext(ctx, q, name, models.ModelStatusActive))
}

func (r *CHModelRegistry) get(ctx context.Context, name, version string) (*models.ModelRegistryEntry, error) {
	q := fmt.Sprintf(`
        SELECT name, version, status, artifact_id, metrics,
               feature_version, trained_at, promoted_at
        FROM %s.model_registry FINAL
        WHERE name = ? AND version = ?
        LIMIT 1
    `, r.database)
	return r.scanOne(r.db.QueryRowContext(ctx, q, name, version))
}

func (r *CHModelRegistry) scanOne(row *sql.Row) (*models.ModelRegistryEntry, error) {
	var (
		e          models.ModelRegistryEntry
		promotedAt sql.NullTime
	)
	err := row.Scan(&e.Name, &e.Version, &e.Status, &e.ArtifactID, &e.Metrics,
		&e.FeatureVersion, &e.TrainedAt, &promotedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("scan registry entry: %w", err)
	}
	if promotedAt.Valid {
		t := promotedAt.Time
		e.PromotedAt = &t
	}
	return &e, nil
}

func (r *CHModelRegistry) insert(ctx context.Context, e *models.ModelRegistryEntry, updatedAt time.Time) error {
	q := fmt.Sprintf(`
        INSERT INTO %s.model_registry
            (name, version, status, artifact_id, metrics,
             feature_version, trained_at, promoted_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `, r.database)
	metrics := e.Metrics
	if metrics == nil {
		metrics = map[string]float64{}
	}
	var promotedAt interface{}
	if e.PromotedAt != nil {
		promotedAt = *e.PromotedAt
	}
	_, err := r.db.ExecContext(ctx, q,
		e.Name, e.Version, e.Status, e.ArtifactID, metrics,
		e.FeatureVersion, e.TrainedAt, promotedAt, updatedAt,
	)
	return err
}
