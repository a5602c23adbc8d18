package pipeline

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"shuttle/internal/config"
	"shuttle/internal/services"
)

// ErrProjectNotFound reports a project name absent from the publish
// database.
var ErrProjectNotFound = fmt.Errorf("project not found: %w", services.ErrNotFound)

// Store provides access to the publish database backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the publish database and applies
// migrations.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Paths.LogDir, "publish.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the location of the database file.
func (s *Store) Path() string {
	return s.path
}

// UpsertProject inserts or refreshes a project entry.
func (s *Store) UpsertProject(ctx context.Context, project Project) error {
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO projects (name, code) VALUES (?, ?)
         ON CONFLICT(name) DO UPDATE SET code = excluded.code`,
		project.Name,
		project.Code,
	)
	if err != nil {
		return fmt.Errorf("upsert project: %w", err)
	}
	return nil
}

// GetProject fetches a project by name.
func (s *Store) GetProject(ctx context.Context, name string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT name, code FROM projects WHERE name = ?`, name)
	var project Project
	if err := row.Scan(&project.Name, &project.Code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%q: %w", name, ErrProjectNotFound)
		}
		return nil, fmt.Errorf("get project: %w", err)
	}
	return &project, nil
}

// InsertSubset stores a subset, generating an identifier when absent.
func (s *Store) InsertSubset(ctx context.Context, subset *Subset) error {
	if subset.ID == "" {
		subset.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO subsets (id, project, asset, name, family) VALUES (?, ?, ?, ?, ?)`,
		subset.ID,
		subset.Project,
		subset.Asset,
		subset.Name,
		subset.Family,
	)
	if err != nil {
		return fmt.Errorf("insert subset: %w", err)
	}
	return nil
}

// GetSubsetByID fetches a subset by identifier.
func (s *Store) GetSubsetByID(ctx context.Context, id string) (*Subset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, project, asset, name, family FROM subsets WHERE id = ?`,
		id,
	)
	subset, err := scanSubset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "pipeline", fmt.Sprintf("subset %s", id), nil)
		}
		return nil, fmt.Errorf("get subset: %w", err)
	}
	return subset, nil
}

// FindSubset looks a subset up by its production coordinates. Returns nil
// without error when absent.
func (s *Store) FindSubset(ctx context.Context, project, asset, name string) (*Subset, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, project, asset, name, family FROM subsets WHERE project = ? AND asset = ? AND name = ?`,
		project,
		asset,
		name,
	)
	subset, err := scanSubset(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find subset: %w", err)
	}
	return subset, nil
}

// InsertVersion stores a version, generating an identifier when absent.
func (s *Store) InsertVersion(ctx context.Context, version *Version) error {
	if version.ID == "" {
		version.ID = uuid.NewString()
	}
	if version.CreatedAt.IsZero() {
		version.CreatedAt = time.Now().UTC()
	}
	dataJSON, err := marshalJSONField(version.Data, "version data")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO versions (id, subset_id, number, data_json, created_at) VALUES (?, ?, ?, ?, ?)`,
		version.ID,
		version.SubsetID,
		version.Number,
		dataJSON,
		version.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// GetVersionByID fetches a version by identifier.
func (s *Store) GetVersionByID(ctx context.Context, id string) (*Version, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, subset_id, number, data_json, created_at FROM versions WHERE id = ?`,
		id,
	)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, services.Wrap(services.ErrNotFound, "pipeline", fmt.Sprintf("version %s", id), nil)
		}
		return nil, fmt.Errorf("get version: %w", err)
	}
	return version, nil
}

// GetLastVersion returns the highest-numbered version of a subset, or nil
// when the subset has no versions yet.
func (s *Store) GetLastVersion(ctx context.Context, subsetID string) (*Version, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, subset_id, number, data_json, created_at FROM versions
         WHERE subset_id = ? ORDER BY number DESC LIMIT 1`,
		subsetID,
	)
	version, err := scanVersion(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get last version: %w", err)
	}
	return version, nil
}

// InsertRepresentation stores a representation, generating an identifier
// when absent.
func (s *Store) InsertRepresentation(ctx context.Context, rep *Representation) error {
	if rep.ID == "" {
		rep.ID = uuid.NewString()
	}
	contextJSON, err := marshalJSONField(rep.Context, "representation context")
	if err != nil {
		return err
	}
	filesJSON, err := marshalJSONField(rep.Files, "representation files")
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(
		ctx,
		`INSERT INTO representations (id, version_id, name, path, context_json, files_json)
         VALUES (?, ?, ?, ?, ?, ?)`,
		rep.ID,
		rep.VersionID,
		rep.Name,
		nullableString(rep.Path),
		contextJSON,
		filesJSON,
	)
	if err != nil {
		return fmt.Errorf("insert representation: %w", err)
	}
	return nil
}

// GetRepresentations returns the representations of a version, optionally
// restricted to the given names.
func (s *Store) GetRepresentations(ctx context.Context, versionID string, names []string) ([]*Representation, error) {
	query := `SELECT id, version_id, name, path, context_json, files_json
              FROM representations WHERE version_id = ?`
	args := []any{versionID}
	if len(names) > 0 {
		placeholders := strings.Repeat("?, ", len(names))
		query += " AND name IN (" + strings.TrimSuffix(placeholders, ", ") + ")"
		for _, name := range names {
			args = append(args, name)
		}
	}
	query += " ORDER BY name"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query representations: %w", err)
	}
	defer rows.Close()

	var reps []*Representation
	for rows.Next() {
		rep, err := scanRepresentation(rows)
		if err != nil {
			return nil, err
		}
		reps = append(reps, rep)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate representations: %w", err)
	}
	return reps, nil
}

// GetRepresentationByName returns one representation of a version, or nil
// without error when absent.
func (s *Store) GetRepresentationByName(ctx context.Context, versionID, name string) (*Representation, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT id, version_id, name, path, context_json, files_json
         FROM representations WHERE version_id = ? AND name = ?`,
		versionID,
		name,
	)
	rep, err := scanRepresentation(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get representation: %w", err)
	}
	return rep, nil
}

// RecordDelivery appends one shipped file to the delivery ledger.
func (s *Store) RecordDelivery(ctx context.Context, delivery *Delivery) error {
	if delivery.DeliveredAt.IsZero() {
		delivery.DeliveredAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO deliveries (
            run_id, project, version_id, representation,
            source_path, destination_path, delivered_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`,
		delivery.RunID,
		delivery.Project,
		delivery.VersionID,
		delivery.Representation,
		delivery.SourcePath,
		delivery.Destination,
		delivery.DeliveredAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record delivery: %w", err)
	}
	if id, err := res.LastInsertId(); err == nil {
		delivery.ID = id
	}
	return nil
}

// DeliveriesByRun lists the ledger rows recorded under one run.
func (s *Store) DeliveriesByRun(ctx context.Context, runID string) ([]*Delivery, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, run_id, project, version_id, representation,
                source_path, destination_path, delivered_at
         FROM deliveries WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query deliveries: %w", err)
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var (
			delivery     Delivery
			deliveredRaw string
		)
		if err := rows.Scan(
			&delivery.ID,
			&delivery.RunID,
			&delivery.Project,
			&delivery.VersionID,
			&delivery.Representation,
			&delivery.SourcePath,
			&delivery.Destination,
			&deliveredRaw,
		); err != nil {
			return nil, fmt.Errorf("scan delivery: %w", err)
		}
		if delivered, err := time.Parse(time.RFC3339Nano, deliveredRaw); err == nil {
			delivery.DeliveredAt = delivered
		}
		deliveries = append(deliveries, &delivery)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate deliveries: %w", err)
	}
	return deliveries, nil
}

func scanSubset(scanner interface{ Scan(dest ...any) error }) (*Subset, error) {
	var subset Subset
	if err := scanner.Scan(&subset.ID, &subset.Project, &subset.Asset, &subset.Name, &subset.Family); err != nil {
		return nil, err
	}
	return &subset, nil
}

func scanVersion(scanner interface{ Scan(dest ...any) error }) (*Version, error) {
	var (
		version    Version
		dataJSON   sql.NullString
		createdRaw string
	)
	if err := scanner.Scan(&version.ID, &version.SubsetID, &version.Number, &dataJSON, &createdRaw); err != nil {
		return nil, err
	}
	if dataJSON.Valid && dataJSON.String != "" {
		if err := json.Unmarshal([]byte(dataJSON.String), &version.Data); err != nil {
			return nil, fmt.Errorf("parse version data: %w", err)
		}
	}
	if created, err := time.Parse(time.RFC3339Nano, createdRaw); err == nil {
		version.CreatedAt = created
	}
	return &version, nil
}

func scanRepresentation(scanner interface{ Scan(dest ...any) error }) (*Representation, error) {
	var (
		rep         Representation
		path        sql.NullString
		contextJSON sql.NullString
		filesJSON   sql.NullString
	)
	if err := scanner.Scan(&rep.ID, &rep.VersionID, &rep.Name, &path, &contextJSON, &filesJSON); err != nil {
		return nil, err
	}
	rep.Path = path.String
	if contextJSON.Valid && contextJSON.String != "" {
		if err := json.Unmarshal([]byte(contextJSON.String), &rep.Context); err != nil {
			return nil, fmt.Errorf("parse representation context: %w", err)
		}
	}
	if filesJSON.Valid && filesJSON.String != "" {
		if err := json.Unmarshal([]byte(filesJSON.String), &rep.Files); err != nil {
			return nil, fmt.Errorf("parse representation files: %w", err)
		}
	}
	return &rep, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
