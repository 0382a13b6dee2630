// Package sqlite provides a durable storage.Store implementation
// backed by modernc.org/sqlite (pure Go, no cgo). It pins the
// connection pool to a single connection, enables WAL journaling, and
// serializes writers across processes with an OS file lock — the same
// defaults the teacher's internal/db package uses for its own
// SQLite-backed store (spec.md §9 "scoped database handle" note).
package sqlite

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/autonome/peek/internal/models"
	"github.com/autonome/peek/internal/storage"
	_ "modernc.org/sqlite"
)

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// Store is the durable, SQLite-backed storage.Store implementation.
type Store struct {
	path string
	dir  string
	conn *sql.DB
}

// New creates a Store for the database file at path. Call Open before
// use. path's parent directory is created on Open if missing.
func New(path string) *Store {
	return &Store{path: path, dir: filepath.Dir(path)}
}

// Open creates the database file (and schema) if it does not exist,
// then runs pending migrations.
func (s *Store) Open() error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return storage.Wrap("Open", fmt.Errorf("create db dir: %w", err))
	}

	_, existsErr := os.Stat(s.path)
	needsInit := os.IsNotExist(existsErr)

	conn, err := openConn(s.path)
	if err != nil {
		return storage.Wrap("Open", err)
	}
	s.conn = conn

	if needsInit {
		if _, err := s.conn.Exec(schema); err != nil {
			s.conn.Close()
			return storage.Wrap("Open", fmt.Errorf("create schema: %w", err))
		}
	}

	if err := s.runMigrations(); err != nil {
		s.conn.Close()
		return storage.Wrap("Open", err)
	}

	return nil
}

// openConn opens a SQLite connection tuned for single-writer,
// multi-process access: one pooled connection, WAL journaling, and a
// busy timeout so concurrent processes block briefly rather than
// erroring immediately.
func openConn(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if _, err := conn.Exec("PRAGMA journal_mode=WAL"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}
	if _, err := conn.Exec("PRAGMA busy_timeout=5000"); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	conn.Exec("PRAGMA synchronous=NORMAL")
	conn.Exec("PRAGMA foreign_keys=ON")

	return conn, nil
}

// Close checkpoints the WAL back into the main database file (so a
// later opener never sees stale -wal/-shm files) and closes the
// connection.
func (s *Store) Close() error {
	if s.conn == nil {
		return nil
	}
	s.conn.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return s.conn.Close()
}

func (s *Store) withWriteLock(fn func() error) error {
	locker := newWriteLocker(s.dir)
	if err := locker.acquire(defaultTimeout); err != nil {
		return fmt.Errorf("acquire write lock: %w", err)
	}
	defer locker.release()
	return fn()
}

func (s *Store) getSchemaVersion() (int, error) {
	var v string
	err := s.conn.QueryRow(`SELECT value FROM schema_info WHERE key = 'version'`).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	var n int
	fmt.Sscanf(v, "%d", &n)
	return n, nil
}

func (s *Store) setSchemaVersion(v int) error {
	_, err := s.conn.Exec(
		`INSERT INTO schema_info (key, value) VALUES ('version', ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		fmt.Sprintf("%d", v),
	)
	return err
}

func (s *Store) runMigrations() error {
	current, err := s.getSchemaVersion()
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}
	if current >= SchemaVersion {
		return nil
	}
	return s.withWriteLock(func() error {
		current, err := s.getSchemaVersion()
		if err != nil {
			return fmt.Errorf("get schema version: %w", err)
		}
		for _, m := range Migrations {
			if m.Version <= current {
				continue
			}
			if _, err := s.conn.Exec(m.SQL); err != nil {
				return fmt.Errorf("migration %d (%s): %w", m.Version, m.Description, err)
			}
			if err := s.setSchemaVersion(m.Version); err != nil {
				return fmt.Errorf("set schema version %d: %w", m.Version, err)
			}
		}
		return s.setSchemaVersion(SchemaVersion)
	})
}

// --- items ---

func (s *Store) GetItem(id string) (*models.Item, error) {
	it, err := s.scanItemByClause("id = ? AND deleted_at = 0", id)
	if err != nil {
		return nil, storage.Wrap("GetItem", err)
	}
	return it, nil
}

func (s *Store) scanItemByClause(clause string, args ...any) (*models.Item, error) {
	row := s.conn.QueryRow(`
		SELECT id, type, content, has_content, metadata, has_metadata,
		       sync_id, sync_source, synced_at, created_at, updated_at, deleted_at
		FROM items WHERE `+clause, args...)
	it, err := scanItemRow(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return it, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItemRow(row rowScanner) (*models.Item, error) {
	var it models.Item
	var typ string
	var content, metadata sql.NullString
	var hasContent, hasMetadata int
	if err := row.Scan(&it.ID, &typ, &content, &hasContent, &metadata, &hasMetadata,
		&it.SyncID, &it.SyncSource, &it.SyncedAt, &it.CreatedAt, &it.UpdatedAt, &it.DeletedAt); err != nil {
		return nil, err
	}
	it.Type = models.ItemType(typ)
	it.Content = content.String
	it.HasContent = hasContent != 0
	it.Metadata = metadata.String
	it.HasMetadata = hasMetadata != 0
	return &it, nil
}

func (s *Store) GetItems(filter storage.ItemFilter) ([]models.Item, error) {
	var clauses []string
	var args []any

	if !filter.IncludeDeleted {
		clauses = append(clauses, "deleted_at = 0")
	}
	if filter.Type != nil {
		clauses = append(clauses, "type = ?")
		args = append(args, string(*filter.Type))
	}
	if filter.Since != nil {
		clauses = append(clauses, "updated_at > ?")
		args = append(args, *filter.Since)
	}

	query := `SELECT id, type, content, has_content, metadata, has_metadata,
	       sync_id, sync_source, synced_at, created_at, updated_at, deleted_at
	FROM items`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	if filter.Since != nil {
		query += " ORDER BY updated_at ASC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	rows, err := s.conn.Query(query, args...)
	if err != nil {
		return nil, storage.Wrap("GetItems", err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		it, err := scanItemRow(rows)
		if err != nil {
			return nil, storage.Wrap("GetItems", err)
		}
		out = append(out, *it)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap("GetItems", err)
	}
	return out, nil
}

func (s *Store) InsertItem(item *models.Item) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO items (id, type, content, has_content, metadata, has_metadata,
			                    sync_id, sync_source, synced_at, created_at, updated_at, deleted_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, string(item.Type), item.Content, boolToInt(item.HasContent),
			item.Metadata, boolToInt(item.HasMetadata),
			item.SyncID, item.SyncSource, item.SyncedAt,
			item.CreatedAt, item.UpdatedAt, item.DeletedAt,
		)
		return err
	})
	return storage.Wrap("InsertItem", err)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func (s *Store) UpdateItem(id string, p storage.ItemPartial) error {
	err := s.withWriteLock(func() error {
		var sets []string
		var args []any

		if p.Type != nil {
			sets = append(sets, "type = ?")
			args = append(args, string(*p.Type))
		}
		if p.Content != nil {
			sets = append(sets, "content = ?")
			args = append(args, *p.Content)
		}
		if p.HasContent != nil {
			sets = append(sets, "has_content = ?")
			args = append(args, boolToInt(*p.HasContent))
		}
		if p.Metadata != nil {
			sets = append(sets, "metadata = ?")
			args = append(args, *p.Metadata)
		}
		if p.HasMetadata != nil {
			sets = append(sets, "has_metadata = ?")
			args = append(args, boolToInt(*p.HasMetadata))
		}
		if p.SyncID != nil {
			sets = append(sets, "sync_id = ?")
			args = append(args, *p.SyncID)
		}
		if p.SyncSource != nil {
			sets = append(sets, "sync_source = ?")
			args = append(args, *p.SyncSource)
		}
		if p.SyncedAt != nil {
			sets = append(sets, "synced_at = ?")
			args = append(args, *p.SyncedAt)
		}
		if p.CreatedAt != nil {
			sets = append(sets, "created_at = ?")
			args = append(args, *p.CreatedAt)
		}
		if p.UpdatedAt != nil {
			sets = append(sets, "updated_at = ?")
			args = append(args, *p.UpdatedAt)
		}
		if p.DeletedAt != nil {
			sets = append(sets, "deleted_at = ?")
			args = append(args, *p.DeletedAt)
		}
		if len(sets) == 0 {
			return nil
		}

		args = append(args, id)
		res, err := s.conn.Exec(`UPDATE items SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	return storage.Wrap("UpdateItem", err)
}

func (s *Store) DeleteItem(id string) error {
	err := s.withWriteLock(func() error {
		it, err := s.scanItemByClause("id = ?", id)
		if err != nil {
			return err
		}
		if it == nil {
			return storage.ErrNotFound
		}
		if it.DeletedAt != 0 {
			return nil
		}
		now := nowMillis()
		_, err = s.conn.Exec(`UPDATE items SET deleted_at = ?, updated_at = ? WHERE id = ?`, now, now, id)
		return err
	})
	return storage.Wrap("DeleteItem", err)
}

func (s *Store) HardDeleteItem(id string) error {
	err := s.withWriteLock(func() error {
		tx, err := s.conn.Begin()
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if _, err := tx.Exec(`DELETE FROM item_tags WHERE item_id = ?`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM items WHERE id = ?`, id); err != nil {
			return err
		}
		return tx.Commit()
	})
	return storage.Wrap("HardDeleteItem", err)
}

// --- tags ---

func (s *Store) GetTag(id string) (*models.Tag, error) {
	t, err := s.scanTagByClause("id = ?", id)
	if err != nil {
		return nil, storage.Wrap("GetTag", err)
	}
	return t, nil
}

func (s *Store) GetTagByName(name string) (*models.Tag, error) {
	t, err := s.scanTagByClause("name_lower = ?", strings.ToLower(name))
	if err != nil {
		return nil, storage.Wrap("GetTagByName", err)
	}
	return t, nil
}

func (s *Store) scanTagByClause(clause string, args ...any) (*models.Tag, error) {
	row := s.conn.QueryRow(`
		SELECT id, name, frequency, last_used_at, frecency_score, created_at, updated_at
		FROM tags WHERE `+clause, args...)
	var t models.Tag
	err := row.Scan(&t.ID, &t.Name, &t.Frequency, &t.LastUsedAt, &t.FrecencyScore, &t.CreatedAt, &t.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (s *Store) InsertTag(tag *models.Tag) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO tags (id, name, name_lower, frequency, last_used_at, frecency_score, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			tag.ID, tag.Name, strings.ToLower(tag.Name), tag.Frequency, tag.LastUsedAt, tag.FrecencyScore, tag.CreatedAt, tag.UpdatedAt,
		)
		return err
	})
	return storage.Wrap("InsertTag", err)
}

func (s *Store) UpdateTag(id string, p storage.TagPartial) error {
	err := s.withWriteLock(func() error {
		var sets []string
		var args []any

		if p.Name != nil {
			sets = append(sets, "name = ?", "name_lower = ?")
			args = append(args, *p.Name, strings.ToLower(*p.Name))
		}
		if p.Frequency != nil {
			sets = append(sets, "frequency = ?")
			args = append(args, *p.Frequency)
		}
		if p.LastUsedAt != nil {
			sets = append(sets, "last_used_at = ?")
			args = append(args, *p.LastUsedAt)
		}
		if p.FrecencyScore != nil {
			sets = append(sets, "frecency_score = ?")
			args = append(args, *p.FrecencyScore)
		}
		if p.UpdatedAt != nil {
			sets = append(sets, "updated_at = ?")
			args = append(args, *p.UpdatedAt)
		}
		if len(sets) == 0 {
			return nil
		}
		args = append(args, id)
		res, err := s.conn.Exec(`UPDATE tags SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return storage.ErrNotFound
		}
		return nil
	})
	return storage.Wrap("UpdateTag", err)
}

func (s *Store) GetAllTags() ([]models.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT id, name, frequency, last_used_at, frecency_score, created_at, updated_at
		FROM tags ORDER BY frecency_score DESC`)
	if err != nil {
		return nil, storage.Wrap("GetAllTags", err)
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Frequency, &t.LastUsedAt, &t.FrecencyScore, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, storage.Wrap("GetAllTags", err)
		}
		out = append(out, t)
	}
	return out, storage.Wrap("GetAllTags", rows.Err())
}

// --- item-tag links ---

func (s *Store) GetItemTags(itemID string) ([]models.Tag, error) {
	rows, err := s.conn.Query(`
		SELECT t.id, t.name, t.frequency, t.last_used_at, t.frecency_score, t.created_at, t.updated_at
		FROM tags t
		JOIN item_tags it ON it.tag_id = t.id
		WHERE it.item_id = ?
		ORDER BY t.name ASC`, itemID)
	if err != nil {
		return nil, storage.Wrap("GetItemTags", err)
	}
	defer rows.Close()

	var out []models.Tag
	for rows.Next() {
		var t models.Tag
		if err := rows.Scan(&t.ID, &t.Name, &t.Frequency, &t.LastUsedAt, &t.FrecencyScore, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, storage.Wrap("GetItemTags", err)
		}
		out = append(out, t)
	}
	return out, storage.Wrap("GetItemTags", rows.Err())
}

func (s *Store) GetItemsByTag(tagID string) ([]models.Item, error) {
	rows, err := s.conn.Query(`
		SELECT i.id, i.type, i.content, i.has_content, i.metadata, i.has_metadata,
		       i.sync_id, i.sync_source, i.synced_at, i.created_at, i.updated_at, i.deleted_at
		FROM items i
		JOIN item_tags it ON it.item_id = i.id
		WHERE it.tag_id = ? AND i.deleted_at = 0
		ORDER BY i.created_at DESC`, tagID)
	if err != nil {
		return nil, storage.Wrap("GetItemsByTag", err)
	}
	defer rows.Close()

	var out []models.Item
	for rows.Next() {
		it, err := scanItemRow(rows)
		if err != nil {
			return nil, storage.Wrap("GetItemsByTag", err)
		}
		out = append(out, *it)
	}
	return out, storage.Wrap("GetItemsByTag", rows.Err())
}

func (s *Store) TagItem(itemID, tagID string) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT OR IGNORE INTO item_tags (item_id, tag_id, created_at) VALUES (?, ?, ?)`,
			itemID, tagID, nowMillis())
		return err
	})
	return storage.Wrap("TagItem", err)
}

func (s *Store) UntagItem(itemID, tagID string) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM item_tags WHERE item_id = ? AND tag_id = ?`, itemID, tagID)
		return err
	})
	return storage.Wrap("UntagItem", err)
}

func (s *Store) ClearItemTags(itemID string) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`DELETE FROM item_tags WHERE item_id = ?`, itemID)
		return err
	})
	return storage.Wrap("ClearItemTags", err)
}

// --- settings ---

func (s *Store) GetSetting(key string) (string, bool, error) {
	var v string
	err := s.conn.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, storage.Wrap("GetSetting", err)
	}
	return v, true, nil
}

func (s *Store) SetSetting(key, value string) error {
	err := s.withWriteLock(func() error {
		_, err := s.conn.Exec(`
			INSERT INTO settings (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
		return err
	})
	return storage.Wrap("SetSetting", err)
}

// --- sync lookup ---

func (s *Store) FindItemBySyncID(idOrSyncID string) (*models.Item, error) {
	it, err := s.scanItemByClause("id = ? AND deleted_at = 0", idOrSyncID)
	if err != nil {
		return nil, storage.Wrap("FindItemBySyncID", err)
	}
	if it != nil {
		return it, nil
	}
	it, err = s.scanItemByClause("sync_id = ? AND deleted_at = 0", idOrSyncID)
	if err != nil {
		return nil, storage.Wrap("FindItemBySyncID", err)
	}
	return it, nil
}

var _ storage.Store = (*Store)(nil)
