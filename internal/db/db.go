package db

import (
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"sheetpress-cli/internal/model"
)

type DB struct {
	*sqlx.DB
	converter *md.Converter
}

func New(dbPath string) (*DB, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return &DB{
		DB:        db,
		converter: md.NewConverter("", true, nil),
	}, nil
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// GetArticleByTitle looks an article up by its title, the dedupe key.
// Returns nil when no article with that title exists.
func (db *DB) GetArticleByTitle(title string) (*model.Article, error) {
	var article model.Article
	err := db.Get(&article, "SELECT * FROM articles WHERE title = ?", title)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up article by title: %w", err)
	}
	return &article, nil
}

// InsertArticle stores a freshly resolved article. The generated HTML is also
// stored as a markdown rendition for the status surface's search.
func (db *DB) InsertArticle(article *model.Article, htmlContent string) (int64, error) {
	var contentMD *string
	if htmlContent != "" {
		if converted, err := db.converter.ConvertString(htmlContent); err == nil {
			contentMD = &converted
		}
	}

	now := time.Now().UTC().Format(time.RFC3339)

	result, err := db.Exec(`
		INSERT INTO articles
			(title, category, status, scheduled_at, doc_link, image_link,
			 wp_post_id, wp_post_link, featured_media_id, content_md,
			 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, article.Title, article.Category, article.Status, article.ScheduledAt,
		article.DocLink, article.ImageLink, article.WPPostID, article.WPPostLink,
		article.FeaturedMediaID, contentMD, now, now)
	if err != nil {
		return 0, fmt.Errorf("failed to insert article: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get article ID: %w", err)
	}
	return id, nil
}

// MarkPublished records a successful post creation.
func (db *DB) MarkPublished(articleID, postID int64, postLink string, status model.PublishStatus) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := db.Exec(`
		UPDATE articles
		SET status = ?, wp_post_id = ?, wp_post_link = ?,
		    failed_count = 0, publish_failed_at = NULL, updated_at = ?
		WHERE id = ?
	`, string(status), postID, postLink, now, articleID)
	if err != nil {
		return fmt.Errorf("failed to mark article published: %w", err)
	}
	return nil
}

// RecordPublishFailure bumps the failure bookkeeping for an article whose
// post creation failed; the sweep retries it later.
func (db *DB) RecordPublishFailure(articleID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := db.Exec(`
		UPDATE articles
		SET publish_failed_at = ?, failed_count = failed_count + 1, updated_at = ?
		WHERE id = ?
	`, now, now, articleID)
	if err != nil {
		return fmt.Errorf("failed to record publish failure: %w", err)
	}
	return nil
}

// SetFeaturedMedia stores the media reference assigned after upload.
func (db *DB) SetFeaturedMedia(articleID, mediaID int64) error {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := db.Exec(`
		UPDATE articles SET featured_media_id = ?, updated_at = ? WHERE id = ?
	`, mediaID, now, articleID)
	if err != nil {
		return fmt.Errorf("failed to set featured media: %w", err)
	}
	return nil
}

// ListDueArticles returns draft articles whose scheduled time has passed (or
// that never had one), skipping articles that have failed too often or too
// recently. These are the candidates for the scheduled-publish sweep.
func (db *DB) ListDueArticles(now time.Time, limit int) ([]model.Article, error) {
	query := `
		SELECT * FROM articles
		WHERE status = 'draft'
		AND (scheduled_at IS NULL OR scheduled_at <= ?)
		AND failed_count < 5
		AND (publish_failed_at IS NULL OR publish_failed_at <= ?)
		ORDER BY scheduled_at ASC, id ASC
	`

	// RFC3339 UTC strings order lexicographically, so plain string
	// comparison works here.
	args := []interface{}{
		now.UTC().Format(time.RFC3339),
		now.Add(-time.Hour).UTC().Format(time.RFC3339),
	}

	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var articles []model.Article
	if err := db.Select(&articles, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list due articles: %w", err)
	}
	return articles, nil
}

func (db *DB) RunMigrations(migrationsDir string) error {
	if err := db.createMigrationsTable(); err != nil {
		return fmt.Errorf("failed to create migrations table: %w", err)
	}

	migrations, err := getMigrationFiles(migrationsDir)
	if err != nil {
		return fmt.Errorf("failed to get migration files: %w", err)
	}

	appliedMigrations, err := db.getAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range migrations {
		if _, applied := appliedMigrations[migration.name]; !applied {
			if err := db.applyMigration(migration); err != nil {
				return fmt.Errorf("failed to apply migration %s: %w", migration.name, err)
			}
		}
	}

	return nil
}

type migration struct {
	name    string
	version int
	path    string
}

func (db *DB) createMigrationsTable() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`
	_, err := db.Exec(query)
	return err
}

func getMigrationFiles(dir string) ([]migration, error) {
	var migrations []migration

	err := filepath.Walk(dir, func(path string, info fs.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if !strings.HasSuffix(info.Name(), ".sql") {
			return nil
		}

		parts := strings.SplitN(info.Name(), "_", 2)
		if len(parts) != 2 {
			return nil
		}

		version, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil
		}

		migrations = append(migrations, migration{
			name:    strings.TrimSuffix(info.Name(), ".sql"),
			version: version,
			path:    path,
		})

		return nil
	})

	if err != nil {
		return nil, err
	}

	sort.Slice(migrations, func(i, j int) bool {
		return migrations[i].version < migrations[j].version
	})

	return migrations, nil
}

func (db *DB) getAppliedMigrations() (map[string]bool, error) {
	query := "SELECT name FROM migrations"
	rows, err := db.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	applied := make(map[string]bool)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		applied[name] = true
	}

	return applied, rows.Err()
}

func (db *DB) applyMigration(m migration) error {
	content, err := os.ReadFile(m.path)
	if err != nil {
		return fmt.Errorf("failed to read migration file: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	statements := strings.Split(string(content), ";")
	for _, stmt := range statements {
		stmt = strings.TrimSpace(stmt)
		if stmt == "" {
			continue
		}

		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("failed to execute statement: %w", err)
		}
	}

	if _, err := tx.Exec("INSERT INTO migrations (version, name) VALUES (?, ?)", m.version, m.name); err != nil {
		return fmt.Errorf("failed to record migration: %w", err)
	}

	return tx.Commit()
}
