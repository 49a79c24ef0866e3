package output

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	// Pure Go driver registered as "sqlite"; the gorm dialector is pointed at it.
	_ "modernc.org/sqlite"
)

const insertBatchSize = 500

// DatabaseConfig selects where results are stored.
type DatabaseConfig struct {
	Driver      string `mapstructure:"driver"`
	DSN         string `mapstructure:"dsn"`
	DSNFile     string `mapstructure:"dsn-file"`
	AutoMigrate bool   `mapstructure:"auto-migrate"`
}

// ScoringRun is one stored run.
type ScoringRun struct {
	ID             string `gorm:"primaryKey;size:36"`
	Keywords       int
	Traits         string
	Advertisements int
	CreatedAt      time.Time
}

// KeywordScore is the score of one keyword for one advertisement.
type KeywordScore struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"size:36;index:idx_keyword_scores_run_ad"`
	AdID      string `gorm:"index:idx_keyword_scores_run_ad"`
	Keyword   string
	Score     float64
	CreatedAt time.Time
}

// TraitScore is the total of one trait for one advertisement.
type TraitScore struct {
	ID        uint   `gorm:"primaryKey"`
	RunID     string `gorm:"size:36;index:idx_trait_scores_run_ad"`
	AdID      string `gorm:"index:idx_trait_scores_run_ad"`
	Trait     string
	Position  int
	Score     float64
	CreatedAt time.Time
}

// Database stores results through gorm.
type Database struct {
	db *gorm.DB
}

// OpenDatabase connects to postgres or sqlite and optionally migrates the
// schema.
func OpenDatabase(cfg DatabaseConfig) (*Database, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(strings.TrimSpace(cfg.Driver)) {
	case "postgres":
		dialector = postgres.New(postgres.Config{
			DSN:                  cfg.DSN,
			PreferSimpleProtocol: true,
		})
	case "sqlite", "":
		dialector = &sqlite.Dialector{DriverName: "sqlite", DSN: cfg.DSN}
	default:
		return nil, fmt.Errorf("unsupported results database driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("connect to results database: %w", err)
	}

	return newDatabase(db, cfg.AutoMigrate)
}

// newDatabase takes ownership of db; its pool is closed when migration fails.
func newDatabase(db *gorm.DB, autoMigrate bool) (*Database, error) {
	d := &Database{db: db}

	if autoMigrate {
		if err := db.AutoMigrate(&ScoringRun{}, &KeywordScore{}, &TraitScore{}); err != nil {
			if cerr := d.Close(); cerr != nil {
				err = errors.Join(err, cerr)
			}
			return nil, fmt.Errorf("failed to migrate results database: %w", err)
		}
	}

	return d, nil
}

// Emit stores the run and all its scores in one transaction.
func (d *Database) Emit(ctx context.Context, r Result) error {
	return emitStaged(ctx, d, r)
}

// Prepare inserts the run inside an open transaction that Commit finishes.
func (d *Database) Prepare(ctx context.Context, r Result) (Pending, error) {
	ids := r.AdIDs()

	run := ScoringRun{
		ID:             r.RunID,
		Keywords:       len(r.Keywords),
		Traits:         strings.Join(r.Traits, ","),
		Advertisements: len(ids),
	}

	keywordScores := make([]KeywordScore, 0, len(ids)*len(r.Keywords))
	traitScores := make([]TraitScore, 0, len(ids)*len(r.Traits))
	for _, id := range ids {
		for _, kw := range r.Keywords {
			keywordScores = append(keywordScores, KeywordScore{
				RunID:   r.RunID,
				AdID:    id,
				Keyword: kw,
				Score:   r.Scores[id][kw],
			})
		}
		vector := r.Vectors[id]
		for i, trait := range r.Traits {
			var v float64
			if i < len(vector) {
				v = vector[i]
			}
			traitScores = append(traitScores, TraitScore{
				RunID:    r.RunID,
				AdID:     id,
				Trait:    trait,
				Position: i,
				Score:    v,
			})
		}
	}

	tx := d.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return nil, fmt.Errorf("begin transaction: %w", tx.Error)
	}
	pending := &dbPending{tx: tx}

	if err := insertRows(tx, &run, keywordScores, traitScores); err != nil {
		return nil, errors.Join(err, pending.Discard())
	}

	return pending, nil
}

func insertRows(tx *gorm.DB, run *ScoringRun, keywordScores []KeywordScore, traitScores []TraitScore) error {
	if err := tx.Create(run).Error; err != nil {
		return fmt.Errorf("store run: %w", err)
	}
	if len(keywordScores) > 0 {
		if err := tx.CreateInBatches(keywordScores, insertBatchSize).Error; err != nil {
			return fmt.Errorf("store keyword scores: %w", err)
		}
	}
	if len(traitScores) > 0 {
		if err := tx.CreateInBatches(traitScores, insertBatchSize).Error; err != nil {
			return fmt.Errorf("store trait scores: %w", err)
		}
	}
	return nil
}

// Revert deletes every row stored for the run.
func (d *Database) Revert(ctx context.Context, r Result) error {
	return d.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("run_id = ?", r.RunID).Delete(&KeywordScore{}).Error; err != nil {
			return fmt.Errorf("delete keyword scores: %w", err)
		}
		if err := tx.Where("run_id = ?", r.RunID).Delete(&TraitScore{}).Error; err != nil {
			return fmt.Errorf("delete trait scores: %w", err)
		}
		if err := tx.Where("id = ?", r.RunID).Delete(&ScoringRun{}).Error; err != nil {
			return fmt.Errorf("delete run: %w", err)
		}
		return nil
	})
}

type dbPending struct {
	tx   *gorm.DB
	done bool
}

func (p *dbPending) Commit(context.Context) error {
	p.done = true
	if err := p.tx.Commit().Error; err != nil {
		return fmt.Errorf("commit results: %w", err)
	}
	return nil
}

func (p *dbPending) Discard() error {
	if p.done {
		return nil
	}
	p.done = true
	if err := p.tx.Rollback().Error; err != nil {
		return fmt.Errorf("rollback results: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (d *Database) Close() error {
	sqlDB, err := d.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
