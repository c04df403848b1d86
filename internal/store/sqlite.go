package store

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/tartampluch/go-birthday-reminders/internal/config"
	"github.com/tartampluch/go-birthday-reminders/internal/model"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaFS embed.FS

// SQLite keeps persons in a single-file database.
type SQLite struct {
	db *sql.DB
}

func openSQLite(cfg config.StoreSettings) (*SQLite, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, errors.New(config.ErrStorePath)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), config.DirPermUserRWX); err != nil {
		return nil, fmt.Errorf("%s: %w", config.ErrCreateDir, err)
	}

	db, err := sql.Open("sqlite", cfg.Path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a small number of concurrent writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if cfg.BusyTimeout > 0 {
		_, _ = db.Exec(fmt.Sprintf("PRAGMA busy_timeout = %d", cfg.BusyTimeout.Milliseconds()))
	}
	_, _ = db.Exec("PRAGMA journal_mode = WAL")
	_, _ = db.Exec("PRAGMA synchronous = NORMAL")

	s := &SQLite{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	b, err := schemaFS.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, string(b))
	return err
}

const selectPerson = `SELECT id, given_name, family_name, display_name,
	birth_day, birth_month, birth_year, external_id, reminders FROM persons`

func (s *SQLite) ListPersons(ctx context.Context) ([]model.Person, error) {
	rows, err := s.db.QueryContext(ctx, selectPerson)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var out []model.Person
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	sortPersons(out)
	return out, nil
}

func (s *SQLite) GetPerson(ctx context.Context, id string) (model.Person, error) {
	p, err := scanPerson(s.db.QueryRowContext(ctx, selectPerson+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Person{}, ErrNotFound
	}
	return p, err
}

func (s *SQLite) SavePerson(ctx context.Context, p model.Person) (model.Person, error) {
	p, err := prepare(p)
	if err != nil {
		return model.Person{}, err
	}

	reminders, err := json.Marshal(p.Reminders)
	if err != nil {
		return model.Person{}, err
	}
	var day, month, year any
	if p.Birthday != nil {
		day, month = p.Birthday.Day, p.Birthday.Month
		if p.Birthday.YearKnown() {
			year = p.Birthday.Year
		}
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO persons(id, given_name, family_name, display_name, birth_day, birth_month, birth_year, external_id, reminders, updated_at)
		 VALUES(?,?,?,?,?,?,?,?,?,?)
		 ON CONFLICT(id) DO UPDATE SET
		   given_name=excluded.given_name, family_name=excluded.family_name, display_name=excluded.display_name,
		   birth_day=excluded.birth_day, birth_month=excluded.birth_month, birth_year=excluded.birth_year,
		   external_id=excluded.external_id, reminders=excluded.reminders, updated_at=excluded.updated_at`,
		p.ID, p.GivenName, p.FamilyName, p.DisplayName, day, month, year, p.ExternalID,
		string(reminders), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return model.Person{}, err
	}
	return p, nil
}

func (s *SQLite) DeletePerson(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM persons WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPerson(row scanner) (model.Person, error) {
	var (
		p                model.Person
		day, month, year sql.NullInt64
		reminders        string
	)
	if err := row.Scan(&p.ID, &p.GivenName, &p.FamilyName, &p.DisplayName,
		&day, &month, &year, &p.ExternalID, &reminders); err != nil {
		return model.Person{}, err
	}
	if day.Valid && month.Valid {
		p.Birthday = &model.Birthday{Day: int(day.Int64), Month: int(month.Int64), Year: int(year.Int64)}
	}
	if err := json.Unmarshal([]byte(reminders), &p.Reminders); err != nil {
		return model.Person{}, fmt.Errorf("%s %s: %w", config.ErrStoreDecode, p.ID, err)
	}
	return p, nil
}
