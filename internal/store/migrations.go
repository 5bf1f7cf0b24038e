package store

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of all schema migrations. Version 1 uses
// IF NOT EXISTS so a memory database created by earlier deployments, which
// have the same two tables but no schema_migrations, is adopted in place.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create session bindings and conversation turns",
		SQL: `
			CREATE TABLE IF NOT EXISTS memory_user_details (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT,
				role        TEXT,
				"user"      TEXT,
				department  TEXT
			);

			CREATE TABLE IF NOT EXISTS conversation_memory_user (
				id          INTEGER PRIMARY KEY AUTOINCREMENT,
				session_id  TEXT,
				role        TEXT,
				"user"      TEXT,
				department  TEXT,
				message     TEXT
			);
		`,
	},
	{
		Version: 2,
		Name:    "add turn kind, timestamps and session indexes",
		SQL: `
			ALTER TABLE conversation_memory_user ADD COLUMN kind TEXT NOT NULL DEFAULT 'normal';
			ALTER TABLE conversation_memory_user ADD COLUMN created_at TEXT NOT NULL DEFAULT '';

			CREATE INDEX IF NOT EXISTS idx_turns_session ON conversation_memory_user (session_id, id);
			CREATE INDEX IF NOT EXISTS idx_bindings_session ON memory_user_details (session_id, id);
		`,
	},
}
