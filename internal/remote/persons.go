package remote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/datememo/datememo/internal/person"
)

// errNoUser is returned when an operation is called without a user id.
var errNoUser = errors.New("user id is required")

// AddOne inserts p as a new row owned by userID.
func (s *Store) AddOne(ctx context.Context, p person.Person, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	args, err := rowArgs(p, userID)
	if err != nil {
		return err
	}
	query := `INSERT INTO ` + TableName + ` (` + columnList() + `) VALUES (` + placeholders(len(columns)) + `)`
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
		return wrap(fmt.Sprintf("add person %s", p.ID), err)
	}
	return nil
}

// UpdateOne writes p, inserting it if the row is missing. A row with the same id
// owned by another user is left untouched.
func (s *Store) UpdateOne(ctx context.Context, p person.Person, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	if err := s.upsert(ctx, s.db, p, userID); err != nil {
		return wrap(fmt.Sprintf("update person %s", p.ID), err)
	}
	return nil
}

// DeleteOne removes the row with id owned by userID.
// Returns nil if the row doesn't exist (idempotent).
func (s *Store) DeleteOne(ctx context.Context, id, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	query := `DELETE FROM ` + TableName + ` WHERE "id" = ? AND "user_id" = ?`
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), id, userID); err != nil {
		return wrap(fmt.Sprintf("delete person %s", id), err)
	}
	return nil
}

// FetchAll returns every row owned by userID, ordered by createdAt then id.
// Absent tag lists come back empty.
func (s *Store) FetchAll(ctx context.Context, userID string) ([]person.Person, error) {
	if err := s.check(userID); err != nil {
		return nil, err
	}
	query := `SELECT ` + columnList() + ` FROM ` + TableName + ` WHERE "user_id" = ? ORDER BY "createdAt" ASC, "id" ASC`
	rows, err := s.db.QueryContext(ctx, s.dialect.rebind(query), userID)
	if err != nil {
		return nil, wrap("fetch persons", err)
	}
	defer rows.Close()

	persons := []person.Person{}
	for rows.Next() {
		p, err := scanPerson(rows)
		if err != nil {
			return nil, err
		}
		persons = append(persons, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("iterate persons", err)
	}
	return persons, nil
}

// HasAny reports whether userID owns at least one row. Any failure, including an
// unconfigured store, reads as false.
func (s *Store) HasAny(ctx context.Context, userID string) bool {
	if err := s.check(userID); err != nil {
		return false
	}
	query := `SELECT "id" FROM ` + TableName + ` WHERE "user_id" = ? LIMIT 1`
	var id string
	err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), userID).Scan(&id)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Printf("WARNING: failed to check for remote data: %v", err)
		}
		return false
	}
	return true
}

// Count returns the number of rows owned by userID.
func (s *Store) Count(ctx context.Context, userID string) (int, error) {
	if err := s.check(userID); err != nil {
		return 0, err
	}
	query := `SELECT COUNT(*) FROM ` + TableName + ` WHERE "user_id" = ?`
	var n int
	if err := s.db.QueryRowContext(ctx, s.dialect.rebind(query), userID).Scan(&n); err != nil {
		return 0, wrap("count persons", err)
	}
	return n, nil
}

// DeleteAll removes every row owned by userID.
func (s *Store) DeleteAll(ctx context.Context, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	query := `DELETE FROM ` + TableName + ` WHERE "user_id" = ?`
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), userID); err != nil {
		return wrap("delete persons", err)
	}
	return nil
}

// InsertAll inserts persons for userID in one transaction; on failure nothing is
// inserted.
func (s *Store) InsertAll(ctx context.Context, persons []person.Person, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	if len(persons) == 0 {
		return nil
	}
	query := `INSERT INTO ` + TableName + ` (` + columnList() + `) VALUES (` + placeholders(len(columns)) + `)`
	return s.inTx(ctx, "insert persons", func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.dialect.rebind(query))
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range persons {
			args, err := rowArgs(p, userID)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, args...); err != nil {
				return fmt.Errorf("person %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// UpsertAll writes persons for userID in one transaction.
func (s *Store) UpsertAll(ctx context.Context, persons []person.Person, userID string) error {
	if err := s.check(userID); err != nil {
		return err
	}
	if len(persons) == 0 {
		return nil
	}
	return s.inTx(ctx, "upsert persons", func(tx *sql.Tx) error {
		for _, p := range persons {
			if err := s.upsert(ctx, tx, p, userID); err != nil {
				return fmt.Errorf("person %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// DeleteExcept removes the rows owned by userID whose id is not in keepIDs.
func (s *Store) DeleteExcept(ctx context.Context, userID string, keepIDs []string) error {
	if len(keepIDs) == 0 {
		return s.DeleteAll(ctx, userID)
	}
	if err := s.check(userID); err != nil {
		return err
	}

	args := make([]any, 0, len(keepIDs)+1)
	args = append(args, userID)
	for _, id := range keepIDs {
		args = append(args, id)
	}
	query := `DELETE FROM ` + TableName + ` WHERE "user_id" = ? AND "id" NOT IN (` + placeholders(len(keepIDs)) + `)`
	if _, err := s.db.ExecContext(ctx, s.dialect.rebind(query), args...); err != nil {
		return wrap("delete stale persons", err)
	}
	return nil
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) upsert(ctx context.Context, ex execer, p person.Person, userID string) error {
	args, err := rowArgs(p, userID)
	if err != nil {
		return err
	}

	var set []string
	for _, c := range columns {
		if c == "id" || c == "user_id" || c == "createdAt" {
			continue
		}
		set = append(set, quote(c)+" = excluded."+quote(c))
	}

	query := `INSERT INTO ` + TableName + ` (` + columnList() + `) VALUES (` + placeholders(len(columns)) + `)
	ON CONFLICT ("id") DO UPDATE SET ` + strings.Join(set, ", ") + `
	WHERE ` + TableName + `."user_id" = excluded."user_id"`

	_, err = ex.ExecContext(ctx, s.dialect.rebind(query), args...)
	return err
}

func (s *Store) inTx(ctx context.Context, action string, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return wrap(action, err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return wrap(action, err)
	}
	if err := tx.Commit(); err != nil {
		return wrap(action, err)
	}
	return nil
}

func (s *Store) check(userID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if strings.TrimSpace(userID) == "" {
		return errNoUser
	}
	return nil
}

// rowArgs returns the values for columns, in order.
func rowArgs(p person.Person, userID string) ([]any, error) {
	p.SetDefaults()
	pos, err := json.Marshal(p.PositiveTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	neg, err := json.Marshal(p.NegativeTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	pers, err := json.Marshal(p.PersonalityTags)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal tags: %w", err)
	}

	return []any{
		p.ID,
		userID,
		p.Name,
		intToNull(p.Age),
		string(p.Gender),
		p.Occupation,
		p.ContactInfo,
		p.InstagramAccount,
		string(p.RelationshipStatus),
		p.MeetChannel,
		string(pos),
		string(neg),
		string(pers),
		intToNull(p.Rating),
		p.Notes,
		timeToNullString(p.FirstDateAt),
		formatTime(p.CreatedAt),
		formatTime(p.UpdatedAt),
	}, nil
}

// scanPerson reads one row selected with columnList.
func scanPerson(rows *sql.Rows) (person.Person, error) {
	var p person.Person
	var userID string
	var age, rating sql.NullInt64
	var gender, occupation, contact, instagram, status, meet, notes sql.NullString
	var pos, neg, pers sql.NullString
	var firstDate sql.NullString
	var createdAt, updatedAt string

	err := rows.Scan(
		&p.ID,
		&userID,
		&p.Name,
		&age,
		&gender,
		&occupation,
		&contact,
		&instagram,
		&status,
		&meet,
		&pos,
		&neg,
		&pers,
		&rating,
		&notes,
		&firstDate,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return p, fmt.Errorf("failed to scan person: %w", err)
	}

	p.Age = nullToInt(age)
	p.Rating = nullToInt(rating)
	p.Gender = person.Gender(gender.String)
	p.Occupation = occupation.String
	p.ContactInfo = contact.String
	p.InstagramAccount = instagram.String
	p.RelationshipStatus = person.Status(status.String)
	if p.RelationshipStatus == "" {
		p.RelationshipStatus = person.Statuses[0]
	}
	p.MeetChannel = meet.String
	p.Notes = notes.String
	p.FirstDateAt = nullStringToTime(firstDate)

	if p.PositiveTags, err = parseTags(pos); err != nil {
		return p, fmt.Errorf("person %s: %w", p.ID, err)
	}
	if p.NegativeTags, err = parseTags(neg); err != nil {
		return p, fmt.Errorf("person %s: %w", p.ID, err)
	}
	if p.PersonalityTags, err = parseTags(pers); err != nil {
		return p, fmt.Errorf("person %s: %w", p.ID, err)
	}

	if p.CreatedAt, err = parseTime(createdAt); err != nil {
		return p, fmt.Errorf("person %s: invalid createdAt: %w", p.ID, err)
	}
	if p.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return p, fmt.Errorf("person %s: invalid updatedAt: %w", p.ID, err)
	}
	return p, nil
}

func parseTags(ns sql.NullString) ([]string, error) {
	if !ns.Valid || ns.String == "" || ns.String == "null" {
		return []string{}, nil
	}
	var tags []string
	if err := json.Unmarshal([]byte(ns.String), &tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
	}
	if tags == nil {
		tags = []string{}
	}
	return tags, nil
}

// timeLayout is RFC3339 in UTC with all nine fraction digits kept, so stored
// timestamps sort as text in time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

func intToNull(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func nullToInt(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// timeToNullString converts a time pointer to a nullable string for SQL.
func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// nullStringToTime converts a nullable SQL string to a time pointer.
func nullStringToTime(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil
	}
	return &t
}
