package remote

import (
	"context"
	"strings"
)

// columns lists the Person columns in the order used by every query.
// Names match the JSON field names of person.Person.
var columns = []string{
	"id",
	"user_id",
	"name",
	"age",
	"gender",
	"occupation",
	"contactInfo",
	"instagramAccount",
	"relationshipStatus",
	"meetChannel",
	"positiveTags",
	"negativeTags",
	"personalityTags",
	"rating",
	"notes",
	"firstDateAt",
	"createdAt",
	"updatedAt",
}

// columnList returns the quoted, comma separated column names.
func columnList() string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = quote(c)
	}
	return strings.Join(quoted, ", ")
}

// EnsureSchema creates the table and its index if they don't exist.
// This is idempotent - safe to call multiple times.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if err := s.ready(); err != nil {
		return err
	}

	// Tags are JSON arrays and timestamps RFC3339 text on every backend.
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS ` + TableName + ` (
		"id" TEXT PRIMARY KEY,
		"user_id" TEXT NOT NULL,
		"name" TEXT NOT NULL,
		"age" INTEGER,
		"gender" TEXT NOT NULL DEFAULT '',
		"occupation" TEXT NOT NULL DEFAULT '',
		"contactInfo" TEXT NOT NULL DEFAULT '',
		"instagramAccount" TEXT NOT NULL DEFAULT '',
		"relationshipStatus" TEXT NOT NULL,
		"meetChannel" TEXT NOT NULL DEFAULT '',
		"positiveTags" TEXT NOT NULL DEFAULT '[]',
		"negativeTags" TEXT NOT NULL DEFAULT '[]',
		"personalityTags" TEXT NOT NULL DEFAULT '[]',
		"rating" INTEGER,
		"notes" TEXT NOT NULL DEFAULT '',
		"firstDateAt" TEXT,
		"createdAt" TEXT NOT NULL,
		"updatedAt" TEXT NOT NULL
	)`,
		`CREATE INDEX IF NOT EXISTS idx_dating_persons_user ON ` + TableName + ` ("user_id")`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return wrap("initialize schema", err)
		}
	}
	return nil
}

