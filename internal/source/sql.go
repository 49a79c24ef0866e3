package source

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/spigell/hh-traits/internal/advert"
	"github.com/spigell/hh-traits/internal/logger"
)

// Supported database/sql drivers.
const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

var identifierRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*(\.[A-Za-z_][A-Za-z0-9_]*)?$`)

// SQLConfig describes where the raw advertisements live.
type SQLConfig struct {
	Driver     string `mapstructure:"driver"`
	DSN        string `mapstructure:"dsn"`
	DSNFile    string `mapstructure:"dsn-file"`
	Table      string `mapstructure:"table"`
	IDColumn   string `mapstructure:"id-column"`
	TextColumn string `mapstructure:"text-column"`
	// Query overrides the generated SELECT. It must return the id and the
	// text, in this order.
	Query           string        `mapstructure:"query"`
	MaxOpenConns    int           `mapstructure:"max-open-conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn-max-lifetime"`
}

// SQL reads advertisements through database/sql.
type SQL struct {
	db     *sql.DB
	query  string
	logger *zap.Logger
}

// OpenSQL connects to the database and checks the connection.
func OpenSQL(ctx context.Context, cfg SQLConfig, log *zap.Logger) (*SQL, error) {
	driver := strings.ToLower(strings.TrimSpace(cfg.Driver))
	if driver != DriverSQLite && driver != DriverMySQL {
		return nil, fmt.Errorf("unsupported sql driver %q", cfg.Driver)
	}
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, errors.New("sql dsn is not configured")
	}

	query, err := buildQuery(cfg)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}

	maxOpen := cfg.MaxOpenConns
	if maxOpen <= 0 {
		maxOpen = 4
	}
	db.SetMaxOpenConns(maxOpen)
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping %s database: %w", driver, err)
	}

	return NewSQL(db, query, log), nil
}

// NewSQL wraps an open database. query must select the id and the text.
func NewSQL(db *sql.DB, query string, log *zap.Logger) *SQL {
	return &SQL{db: db, query: query, logger: logger.WithFields(log)}
}

func (s *SQL) FetchAll(ctx context.Context, minLength int, excludeEmpty bool) ([]advert.Advertisement, error) {
	rows, err := s.db.QueryContext(ctx, s.query)
	if err != nil {
		return nil, fmt.Errorf("query advertisements: %w", err)
	}
	defer rows.Close()

	var (
		ads     []advert.Advertisement
		skipped int
	)
	for rows.Next() {
		var (
			id   sql.NullString
			text sql.NullString
		)
		if err := rows.Scan(&id, &text); err != nil {
			return nil, fmt.Errorf("scan advertisement: %w", err)
		}
		if !Keep(text.String, minLength, excludeEmpty) {
			skipped++
			continue
		}
		ads = append(ads, advert.Advertisement{ID: id.String, Text: text.String})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read advertisements: %w", err)
	}

	s.logger.Debug("advertisements read from database",
		zap.Int("kept", len(ads)),
		zap.Int("skipped", skipped),
	)

	return ads, nil
}

// Close releases the connection pool.
func (s *SQL) Close() error {
	return s.db.Close()
}

func buildQuery(cfg SQLConfig) (string, error) {
	if q := strings.TrimSpace(cfg.Query); q != "" {
		return q, nil
	}

	table := defaultString(cfg.Table, "advertisements")
	idCol := defaultString(cfg.IDColumn, "id")
	textCol := defaultString(cfg.TextColumn, "text")

	for _, ident := range []string{table, idCol, textCol} {
		if !identifierRe.MatchString(ident) {
			return "", fmt.Errorf("invalid sql identifier %q", ident)
		}
	}

	return fmt.Sprintf("SELECT %s, %s FROM %s ORDER BY %s", idCol, textCol, table, idCol), nil
}

func defaultString(v, def string) string {
	if v = strings.TrimSpace(v); v != "" {
		return v
	}
	return def
}
