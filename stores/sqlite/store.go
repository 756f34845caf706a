package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"portaal/core"
)

type sqliteStore struct {
	db *sql.DB
}

// NewStore creates a new SQLite-based store.
func NewStore(dataSourceName string) *sqliteStore {
	db, err := sql.Open("sqlite", dataSourceName)
	if err != nil {
		log.Fatalf("failed to open sqlite database: %v", err)
	}

	templateTableStmt := `
	CREATE TABLE IF NOT EXISTS templates (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		name TEXT,
		filter_ids TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME
	);`
	if _, err = db.Exec(templateTableStmt); err != nil {
		log.Fatalf("failed to create templates table: %v", err)
	}

	projectTableStmt := `
	CREATE TABLE IF NOT EXISTS projects (
		id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		name TEXT,
		template_id TEXT,
		template_owner_id TEXT,
		data BLOB,
		created_at DATETIME,
		updated_at DATETIME,
		PRIMARY KEY (user_id, id)
	);`
	if _, err = db.Exec(projectTableStmt); err != nil {
		log.Fatalf("failed to create projects table: %v", err)
	}

	filterTableStmt := `
	CREATE TABLE IF NOT EXISTS filters (
		id TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		name TEXT NOT NULL
	);`
	if _, err = db.Exec(filterTableStmt); err != nil {
		log.Fatalf("failed to create filters table: %v", err)
	}
	seedFilters(db)

	assetTableStmt := `
	CREATE TABLE IF NOT EXISTS assets (
		key TEXT PRIMARY KEY,
		content_type TEXT,
		data BLOB,
		created_at DATETIME
	);`
	if _, err = db.Exec(assetTableStmt); err != nil {
		log.Fatalf("failed to create assets table: %v", err)
	}

	messageTableStmt := `
	CREATE TABLE IF NOT EXISTS messages (
		id TEXT PRIMARY KEY,
		room_id TEXT NOT NULL,
		user_id TEXT NOT NULL,
		login TEXT,
		body TEXT,
		sent_at DATETIME
	);`
	if _, err = db.Exec(messageTableStmt); err != nil {
		log.Fatalf("failed to create messages table: %v", err)
	}

	return &sqliteStore{db}
}

func seedFilters(db *sql.DB) {
	for _, f := range core.DefaultFilters {
		_, err := db.Exec(
			"INSERT INTO filters (id, category, name) VALUES (?, ?, ?) ON CONFLICT(id) DO NOTHING",
			f.ID, f.Category, f.Name)
		if err != nil {
			log.Fatalf("failed to seed filters: %v", err)
		}
	}
}

// TemplateStore implementation
func (s *sqliteStore) List(ctx context.Context, userID string) ([]*core.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, filter_ids, created_at, updated_at FROM templates WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*core.Template
	for rows.Next() {
		t, err := scanTemplateMeta(rows, userID)
		if err != nil {
			return nil, err
		}
		templates = append(templates, t)
	}
	return templates, rows.Err()
}

func (s *sqliteStore) Browse(ctx context.Context, filterID string) ([]*core.Template, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, name, filter_ids, created_at, updated_at FROM templates")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var templates []*core.Template
	for rows.Next() {
		var t core.Template
		var filterIDs sql.NullString
		if err := rows.Scan(&t.ID, &t.UserID, &t.Name, &filterIDs, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, err
		}
		t.FilterIDs = decodeFilterIDs(filterIDs)
		if filterID != "" && !containsFilter(t.FilterIDs, filterID) {
			continue
		}
		templates = append(templates, &t)
	}
	return templates, rows.Err()
}

func (s *sqliteStore) Find(ctx context.Context, id string) (*core.Template, error) {
	var t core.Template
	t.ID = id
	var filterIDs sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT user_id, name, filter_ids, data, created_at, updated_at FROM templates WHERE id = ?", id).
		Scan(&t.UserID, &t.Name, &filterIDs, &t.Data, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("template with id %s not found", id)
		}
		return nil, err
	}
	t.FilterIDs = decodeFilterIDs(filterIDs)
	return &t, nil
}

func (s *sqliteStore) SaveTemplate(ctx context.Context, template *core.Template) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() // Rollback on any error

	var ownerID string
	err = tx.QueryRowContext(ctx, "SELECT user_id FROM templates WHERE id = ?", template.ID).Scan(&ownerID)
	if err != nil && err != sql.ErrNoRows {
		return err
	}
	exists := err == nil
	if exists && ownerID != template.UserID {
		return fmt.Errorf("template with id %s not found for user %s", template.ID, template.UserID)
	}

	filterIDs, err := json.Marshal(template.FilterIDs)
	if err != nil {
		return err
	}

	now := time.Now()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE templates SET name = ?, filter_ids = ?, data = ?, updated_at = ? WHERE id = ?",
			template.Name, string(filterIDs), template.Data, now, template.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO templates (id, user_id, name, filter_ids, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
			template.ID, template.UserID, template.Name, string(filterIDs), template.Data, now, now)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteTemplate(ctx context.Context, userID, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM templates WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return err
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return fmt.Errorf("template with id %s not found for user %s", id, userID)
	}
	return nil
}

// ProjectStore implementation
func (s *sqliteStore) ListProjects(ctx context.Context, userID string) ([]*core.Project, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, template_id, template_owner_id, created_at, updated_at FROM projects WHERE user_id = ?", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*core.Project
	for rows.Next() {
		var p core.Project
		p.UserID = userID
		var templateID, templateOwnerID sql.NullString
		if err := rows.Scan(&p.ID, &p.Name, &templateID, &templateOwnerID, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		p.TemplateID = templateID.String
		p.TemplateOwnerID = templateOwnerID.String
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (s *sqliteStore) GetProject(ctx context.Context, userID, id string) (*core.Project, error) {
	var p core.Project
	p.UserID = userID
	p.ID = id
	var templateID, templateOwnerID sql.NullString
	err := s.db.QueryRowContext(ctx,
		"SELECT name, template_id, template_owner_id, data, created_at, updated_at FROM projects WHERE user_id = ? AND id = ?",
		userID, id).Scan(&p.Name, &templateID, &templateOwnerID, &p.Data, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("project with id %s not found for user %s", id, userID)
		}
		return nil, err
	}
	p.TemplateID = templateID.String
	p.TemplateOwnerID = templateOwnerID.String
	return &p, nil
}

func (s *sqliteStore) SaveProject(ctx context.Context, project *core.Project) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT 1 FROM projects WHERE user_id = ? AND id = ?", project.UserID, project.ID).Scan(&exists)
	if err != nil && err != sql.ErrNoRows {
		return err
	}

	now := time.Now()
	if exists {
		_, err = tx.ExecContext(ctx,
			"UPDATE projects SET name = ?, data = ?, updated_at = ? WHERE user_id = ? AND id = ?",
			project.Name, project.Data, now, project.UserID, project.ID)
	} else {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO projects (id, user_id, name, template_id, template_owner_id, data, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
			project.ID, project.UserID, project.Name, project.TemplateID, project.TemplateOwnerID, project.Data, now, now)
	}
	if err != nil {
		return err
	}
	return tx.Commit()
}

func (s *sqliteStore) DeleteProject(ctx context.Context, userID, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM projects WHERE user_id = ? AND id = ?", userID, id)
	return err
}

// FilterStore implementation
func (s *sqliteStore) ListFilters(ctx context.Context) ([]core.Filter, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT id, category, name FROM filters ORDER BY category, name")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filters []core.Filter
	for rows.Next() {
		var f core.Filter
		if err := rows.Scan(&f.ID, &f.Category, &f.Name); err != nil {
			return nil, err
		}
		filters = append(filters, f)
	}
	return filters, rows.Err()
}

// AssetStore implementation
func (s *sqliteStore) SaveAsset(ctx context.Context, asset *core.Asset) error {
	if asset.CreatedAt.IsZero() {
		asset.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO assets (key, content_type, data, created_at) VALUES (?, ?, ?, ?) ON CONFLICT(key) DO UPDATE SET content_type = excluded.content_type, data = excluded.data",
		asset.Key, asset.ContentType, asset.Data, asset.CreatedAt)
	if err != nil {
		logrus.WithField("asset_key", asset.Key).WithError(err).Error("Failed to save asset")
		return err
	}
	return nil
}

func (s *sqliteStore) GetAsset(ctx context.Context, key string) (*core.Asset, error) {
	var asset core.Asset
	asset.Key = key
	err := s.db.QueryRowContext(ctx,
		"SELECT content_type, data, created_at FROM assets WHERE key = ?", key).
		Scan(&asset.ContentType, &asset.Data, &asset.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("asset with key %s not found", key)
		}
		return nil, err
	}
	return &asset, nil
}

func (s *sqliteStore) DeleteAsset(ctx context.Context, key string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM assets WHERE key = ?", key)
	return err
}

// MessageStore implementation
func (s *sqliteStore) AppendMessage(ctx context.Context, message *core.Message) error {
	if message.SentAt.IsZero() {
		message.SentAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO messages (id, room_id, user_id, login, body, sent_at) VALUES (?, ?, ?, ?, ?, ?)",
		message.ID, message.RoomID, message.UserID, message.Login, message.Body, message.SentAt)
	return err
}

func (s *sqliteStore) ListMessages(ctx context.Context, roomID string) ([]*core.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, user_id, login, body, sent_at FROM messages WHERE room_id = ? ORDER BY sent_at ASC", roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*core.Message
	for rows.Next() {
		var m core.Message
		m.RoomID = roomID
		if err := rows.Scan(&m.ID, &m.UserID, &m.Login, &m.Body, &m.SentAt); err != nil {
			return nil, err
		}
		messages = append(messages, &m)
	}
	return messages, rows.Err()
}

type templateRow interface {
	Scan(dest ...any) error
}

func scanTemplateMeta(row templateRow, userID string) (*core.Template, error) {
	var t core.Template
	t.UserID = userID
	var filterIDs sql.NullString
	if err := row.Scan(&t.ID, &t.Name, &filterIDs, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.FilterIDs = decodeFilterIDs(filterIDs)
	return &t, nil
}

func decodeFilterIDs(raw sql.NullString) []string {
	if !raw.Valid || raw.String == "" {
		return nil
	}
	var ids []string
	if err := json.Unmarshal([]byte(raw.String), &ids); err != nil {
		logrus.WithError(err).Warn("Failed to decode template filter ids")
		return nil
	}
	return ids
}

func containsFilter(ids []string, filterID string) bool {
	for _, id := range ids {
		if id == filterID {
			return true
		}
	}
	return false
}
