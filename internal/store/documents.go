package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/tidegate/authcore/internal/expr"
	"github.com/tidegate/authcore/internal/policy"
	"github.com/tidegate/authcore/internal/types"
)

/*
 * Guarded document store.
 *
 * Demonstrates the full collaborator contract around the policy engine:
 *
 *   - List derives the row filter from the "documents" read policy and
 *     pushes it into the SELECT, so rows the rule excludes are never
 *     fetched. Because filter extraction is sound but partial, every
 *     fetched row is still re-checked with CheckAccess before it is
 *     returned - the access check stays the authority.
 *   - Get/Insert/Update/Delete run the access check for their action and
 *     apply the read/write field masks, so denied fields neither leave the
 *     store nor land in it.
 *
 * Missing policies deny: no rows, no fields, no writes.
 */

// Store-level sentinel errors.
var (
	// ErrNotFound indicates no document with the given ID exists.
	ErrNotFound = errors.New("document not found")

	// ErrDenied indicates the policy engine denied the operation.
	ErrDenied = errors.New("access denied by policy")
)

// documentsResource is the policy resource name this store enforces.
const documentsResource = "documents"

// documentColumns maps policy field names to table columns. A filter
// constraint outside this map fails translation instead of being dropped.
var documentColumns = map[string]string{
	"id":         "id",
	"title":      "title",
	"body":       "body",
	"isPublic":   "is_public",
	"published":  "published",
	"uploadedBy": "uploaded_by",
	"createdAt":  "created_at",
}

// writableColumns are the columns Update may touch, keyed by field name.
var writableColumns = map[string]string{
	"title":     "title",
	"body":      "body",
	"isPublic":  "is_public",
	"published": "published",
}

type documentRow struct {
	ID         string    `db:"id"`
	Title      string    `db:"title"`
	Body       string    `db:"body"`
	IsPublic   bool      `db:"is_public"`
	Published  bool      `db:"published"`
	UploadedBy string    `db:"uploaded_by"`
	CreatedAt  time.Time `db:"created_at"`
}

// record converts a row into the field-name shape policies address.
func (r documentRow) record() types.Record {
	return types.Record{
		"id":         r.ID,
		"title":      r.Title,
		"body":       r.Body,
		"isPublic":   r.IsPublic,
		"published":  r.Published,
		"uploadedBy": r.UploadedBy,
		"createdAt":  r.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// Documents is a policy-guarded store over the documents table.
type Documents struct {
	db      *sqlx.DB
	queries *Queries
	engine  *policy.Engine
}

// NewDocuments creates a guarded document store.
func NewDocuments(db *sqlx.DB, queries *Queries, engine *policy.Engine) (*Documents, error) {
	if db == nil {
		return nil, fmt.Errorf("db cannot be nil")
	}
	if queries == nil {
		return nil, fmt.Errorf("queries cannot be nil")
	}
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	return &Documents{db: db, queries: queries, engine: engine}, nil
}

// List returns the documents the user may read, with the derived row filter
// pushed into the query and read field masks applied to each result.
func (s *Documents) List(user expr.User, params map[string]any) ([]types.Record, error) {
	filter, ok := s.engine.RowFilterFor(documentsResource, types.ActionRead, user, params)
	if !ok {
		// No read policy: fail closed, return no rows.
		return nil, nil
	}

	where, args, err := BuildWhere(filter, documentColumns)
	if err != nil {
		return nil, fmt.Errorf("translate row filter: %w", err)
	}

	query := "SELECT id, title, body, is_public, published, uploaded_by, created_at FROM documents"
	if where != "" {
		query += " WHERE " + where
	}
	query += " ORDER BY created_at, id"

	var rows []documentRow
	if err := s.db.Select(&rows, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}

	out := make([]types.Record, 0, len(rows))
	for _, row := range rows {
		rec := row.record()
		allowed, err := s.engine.CheckAccess(policy.AccessRequest{
			Resource: documentsResource,
			Action:   types.ActionRead,
			User:     user,
			Record:   rec,
			Params:   params,
		})
		if err != nil {
			return nil, err
		}
		if !allowed {
			// The filter is wider than the rule; the check is the authority.
			continue
		}
		out = append(out, s.engine.FilterRecordFor(documentsResource, types.ActionRead, rec, policy.FieldRead))
	}
	return out, nil
}

// Get fetches one document, enforcing the read policy and field mask.
func (s *Documents) Get(user expr.User, id string) (types.Record, error) {
	row, err := s.fetch(id)
	if err != nil {
		return nil, err
	}

	rec := row.record()
	allowed, err := s.engine.CheckAccess(policy.AccessRequest{
		Resource: documentsResource,
		Action:   types.ActionRead,
		User:     user,
		Record:   rec,
	})
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrDenied
	}
	return s.engine.FilterRecordFor(documentsResource, types.ActionRead, rec, policy.FieldRead), nil
}

// Insert creates a document from the write-masked record, stamping ID,
// owner, and creation time server-side.
func (s *Documents) Insert(user expr.User, rec types.Record) (types.Record, error) {
	allowed, err := s.engine.CheckAccess(policy.AccessRequest{
		Resource: documentsResource,
		Action:   types.ActionCreate,
		User:     user,
		Record:   rec,
	})
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrDenied
	}

	// Smuggled fields die here regardless of what the caller sent.
	masked := s.engine.FilterRecordFor(documentsResource, types.ActionCreate, rec, policy.FieldWrite)

	row := documentRow{
		ID:         uuid.Must(uuid.NewV7()).String(),
		Title:      stringField(masked, "title"),
		Body:       stringField(masked, "body"),
		IsPublic:   boolField(masked, "isPublic"),
		Published:  boolField(masked, "published"),
		UploadedBy: user.ID,
		CreatedAt:  time.Now().UTC(),
	}

	if _, err := s.queries.Exec("insert-document",
		row.ID, row.Title, row.Body, row.IsPublic, row.Published, row.UploadedBy, row.CreatedAt); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return s.engine.FilterRecordFor(documentsResource, types.ActionRead, row.record(), policy.FieldRead), nil
}

// Update applies write-masked changes to an existing document. The update
// policy is evaluated against the stored record, not the incoming payload.
func (s *Documents) Update(user expr.User, id string, changes types.Record) (types.Record, error) {
	row, err := s.fetch(id)
	if err != nil {
		return nil, err
	}

	allowed, err := s.engine.CheckAccess(policy.AccessRequest{
		Resource: documentsResource,
		Action:   types.ActionUpdate,
		User:     user,
		Record:   row.record(),
	})
	if err != nil {
		return nil, err
	}
	if !allowed {
		return nil, ErrDenied
	}

	masked := s.engine.FilterRecordFor(documentsResource, types.ActionUpdate, changes, policy.FieldWrite)

	var sets []string
	var args []any
	for field, column := range writableColumns {
		value, ok := masked[field]
		if !ok {
			continue
		}
		sets = append(sets, column+" = ?")
		args = append(args, value)
	}
	if len(sets) > 0 {
		args = append(args, id)
		query := "UPDATE documents SET " + strings.Join(sets, ", ") + " WHERE id = ?"
		if _, err := s.db.Exec(s.db.Rebind(query), args...); err != nil {
			return nil, fmt.Errorf("update document: %w", err)
		}
	}

	updated, err := s.fetch(id)
	if err != nil {
		return nil, err
	}
	return s.engine.FilterRecordFor(documentsResource, types.ActionRead, updated.record(), policy.FieldRead), nil
}

// Delete removes a document after the delete policy allows it.
func (s *Documents) Delete(user expr.User, id string) error {
	row, err := s.fetch(id)
	if err != nil {
		return err
	}

	allowed, err := s.engine.CheckAccess(policy.AccessRequest{
		Resource: documentsResource,
		Action:   types.ActionDelete,
		User:     user,
		Record:   row.record(),
	})
	if err != nil {
		return err
	}
	if !allowed {
		return ErrDenied
	}

	if _, err := s.queries.Exec("delete-document", id); err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return nil
}

// Count returns the total number of documents, unscoped by policy. For
// operational checks, never user-facing listings (those go through List).
func (s *Documents) Count() (int, error) {
	var n int
	if err := s.queries.Get("count-documents", &n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

func (s *Documents) fetch(id string) (documentRow, error) {
	var row documentRow
	err := s.queries.Get("get-document", &row, id)
	if errors.Is(err, sql.ErrNoRows) {
		return documentRow{}, ErrNotFound
	}
	if err != nil {
		return documentRow{}, fmt.Errorf("get document: %w", err)
	}
	return row, nil
}

func stringField(rec types.Record, name string) string {
	if s, ok := rec[name].(string); ok {
		return s
	}
	return ""
}

func boolField(rec types.Record, name string) bool {
	if b, ok := rec[name].(bool); ok {
		return b
	}
	return false
}
