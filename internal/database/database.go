package database

import (
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite" // SQLite driver
)

// New creates a new database connection pool.
func New(dataSourceName string) (*sqlx.DB, error) {
	dsn := dataSourceName
	if !strings.Contains(dsn, "_pragma") {
		sep := "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
		dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_time_format=sqlite"
	}
	db, err := sqlx.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

// NewMemory opens a private in-memory database. Each call gets its own store.
func NewMemory(name string) (*sqlx.DB, error) {
	db, err := sqlx.Open("sqlite", "file:"+name+"?mode=memory&cache=shared&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_time_format=sqlite")
	if err != nil {
		return nil, err
	}
	// A single connection keeps the shared-cache database alive and serialises writers.
	db.SetMaxOpenConns(1)
	if err = db.Ping(); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// TimeLayout is how timestamps are written by the driver (_time_format=sqlite).
// Aggregates such as MAX(created_at) come back as text in this layout.
const TimeLayout = "2006-01-02 15:04:05.999999999-07:00"

// Migrate runs the SQL statements to set up the database schema.
func Migrate(db *sqlx.DB) error {
	const sqlStmt = `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT NOT NULL PRIMARY KEY,
		fname TEXT NOT NULL,
		lname TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		bio TEXT NOT NULL DEFAULT '',
		image TEXT NOT NULL DEFAULT '',
		cover TEXT NOT NULL DEFAULT '',
		is_admin INTEGER NOT NULL DEFAULT 0,
		is_verified INTEGER NOT NULL DEFAULT 0,
		otp TEXT,
		otp_expires_at DATETIME,
		reset_token TEXT,
		reset_token_expiry DATETIME,
		failed_login_attempts INTEGER NOT NULL DEFAULT 0,
		lock_until DATETIME,
		password_changed_at DATETIME NOT NULL,
		-- Store complex fields as JSON text
		password_history_json TEXT NOT NULL DEFAULT '[]',
		mfa_secret TEXT,
		mfa_enabled INTEGER NOT NULL DEFAULT 0,
		mfa_last_step INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_users_reset_token ON users(reset_token);

	CREATE TABLE IF NOT EXISTS posts (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		caption TEXT NOT NULL,
		category TEXT NOT NULL,
		images_json TEXT NOT NULL DEFAULT '[]',
		like_count INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_posts_user ON posts(user_id);
	CREATE INDEX IF NOT EXISTS idx_posts_created ON posts(created_at);

	CREATE TABLE IF NOT EXISTS post_likes (
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (post_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS post_comments (
		id TEXT NOT NULL PRIMARY KEY,
		post_id TEXT NOT NULL REFERENCES posts(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		comment_text TEXT NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_post_comments_post ON post_comments(post_id);

	CREATE TABLE IF NOT EXISTS government_profiles (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		description TEXT NOT NULL,
		address TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		thumbnail TEXT NOT NULL,
		contact TEXT NOT NULL DEFAULT '',
		website TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_government_profiles_coords ON government_profiles(latitude, longitude);

	CREATE TABLE IF NOT EXISTS government_branches (
		id TEXT NOT NULL PRIMARY KEY,
		profile_id TEXT NOT NULL REFERENCES government_profiles(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		address TEXT NOT NULL,
		latitude REAL NOT NULL,
		longitude REAL NOT NULL,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_government_branches_coords ON government_branches(latitude, longitude);

	CREATE TABLE IF NOT EXISTS government_follows (
		profile_id TEXT NOT NULL REFERENCES government_profiles(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at DATETIME NOT NULL,
		PRIMARY KEY (profile_id, user_id)
	);

	CREATE TABLE IF NOT EXISTS guidances (
		id TEXT NOT NULL PRIMARY KEY,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		thumbnail TEXT NOT NULL,
		documents_required_json TEXT NOT NULL DEFAULT '[]',
		cost_required TEXT NOT NULL DEFAULT '',
		government_profile_id TEXT REFERENCES government_profiles(id) ON DELETE SET NULL,
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_guidances_category ON guidances(category);

	CREATE TABLE IF NOT EXISTS guidance_tracking (
		guidance_id TEXT NOT NULL REFERENCES guidances(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		document TEXT NOT NULL,
		is_checked INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (guidance_id, user_id, document)
	);

	CREATE TABLE IF NOT EXISTS notifications (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		is_read INTEGER NOT NULL DEFAULT 0,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_notifications_user ON notifications(user_id, created_at);

	CREATE TABLE IF NOT EXISTS feedbacks (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT REFERENCES users(id) ON DELETE SET NULL,
		category TEXT NOT NULL,
		suggestion TEXT NOT NULL DEFAULT '',
		feedback TEXT NOT NULL,
		files_json TEXT NOT NULL DEFAULT '[]',
		created_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		pidx TEXT NOT NULL UNIQUE,
		purchase_order_id TEXT NOT NULL,
		purchase_order_name TEXT NOT NULL,
		amount INTEGER NOT NULL,
		status TEXT NOT NULL,
		transaction_id TEXT NOT NULL DEFAULT '',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS activity_logs (
		id TEXT NOT NULL PRIMARY KEY,
		user_id TEXT,
		action TEXT NOT NULL,
		entity_type TEXT NOT NULL,
		entity_id TEXT,
		ip_address TEXT NOT NULL DEFAULT '',
		user_agent TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		metadata_json TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_created ON activity_logs(created_at);
	CREATE INDEX IF NOT EXISTS idx_activity_logs_user ON activity_logs(user_id, created_at);
	`
	if _, err := db.Exec(sqlStmt); err != nil {
		return err
	}
	return addMissingColumns(db)
}

// columnAdditions are columns added after the first release. CREATE TABLE IF
// NOT EXISTS leaves older tables untouched, so they are added here.
var columnAdditions = []struct {
	table, column, definition string
}{
	{"users", "mfa_last_step", "INTEGER NOT NULL DEFAULT 0"},
}

func addMissingColumns(db *sqlx.DB) error {
	for _, c := range columnAdditions {
		var n int
		if err := db.Get(&n, `SELECT COUNT(*) FROM pragma_table_info(?) WHERE name = ?`, c.table, c.column); err != nil {
			return fmt.Errorf("inspect %s: %w", c.table, err)
		}
		if n > 0 {
			continue
		}
		if _, err := db.Exec(fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s %s`, c.table, c.column, c.definition)); err != nil {
			return fmt.Errorf("add %s.%s: %w", c.table, c.column, err)
		}
	}
	return nil
}
