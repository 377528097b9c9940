// Package admin exposes the platform's collections to administrators as
// generic resources with list, show, create, edit and delete, plus a record
// count dashboard.
package admin

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

var (
	ErrUnknownResource = errors.New("unknown resource")
	ErrRecordNotFound  = errors.New("record not found")
	ErrInvalidRecord   = errors.New("invalid record")
	ErrReadOnly        = errors.New("resource is read-only")
)

// Columns the registry fills in itself on create and edit.
var managedColumns = map[string]bool{"id": true, "created_at": true, "updated_at": true}

const (
	defaultPerPage = 10
	maxPerPage     = 100
)

// Resource describes one collection shown in the console. Hidden columns
// are never listed and never writable.
type Resource struct {
	Name     string   `json:"name"`
	Label    string   `json:"label"`
	Table    string   `json:"-"`
	OrderBy  string   `json:"-"`
	Hidden   []string `json:"-"`
	Columns  []string `json:"columns"`
	NoCreate bool     `json:"noCreate,omitempty"`
	ReadOnly bool     `json:"readOnly,omitempty"`

	// fields maps writable field names to their columns.
	fields  map[string]string
	managed map[string]bool
}

// Record is one row with hidden columns removed. Columns ending in _json are
// decoded and exposed without the suffix.
type Record map[string]interface{}

// Page is a slice of records plus paging information.
type Page struct {
	Resource string   `json:"resource"`
	Records  []Record `json:"records"`
	Total    int64    `json:"total"`
	Page     int      `json:"page"`
	PerPage  int      `json:"perPage"`
}

// DefaultResources are the collections administrators can browse.
func DefaultResources() []Resource {
	return []Resource{
		{
			Name: "users", Label: "Users", Table: "users", OrderBy: "created_at DESC", NoCreate: true,
			Hidden: []string{"password_hash", "otp", "otp_expires_at", "reset_token", "reset_token_expiry",
				"mfa_secret", "mfa_last_step", "password_history_json"},
		},
		{Name: "posts", Label: "Posts", Table: "posts", OrderBy: "created_at DESC"},
		{Name: "guidances", Label: "Guidances", Table: "guidances", OrderBy: "created_at DESC"},
		{Name: "notifications", Label: "Notifications", Table: "notifications", OrderBy: "created_at DESC"},
		{Name: "government-profiles", Label: "Government Profiles", Table: "government_profiles", OrderBy: "created_at DESC"},
		{Name: "feedbacks", Label: "Feedbacks", Table: "feedbacks", OrderBy: "created_at DESC"},
		{Name: "payments", Label: "Payments", Table: "payments", OrderBy: "created_at DESC"},
		{Name: "activity-logs", Label: "Activity Logs", Table: "activity_logs", OrderBy: "created_at DESC", ReadOnly: true},
	}
}

// Registry serves resources from the application database.
type Registry struct {
	db        *sqlx.DB
	resources []Resource
	byName    map[string]*Resource
	now       func() time.Time
}

// NewRegistry creates a Registry and resolves each resource's visible
// columns from the schema.
func NewRegistry(ctx context.Context, db *sqlx.DB, resources []Resource) (*Registry, error) {
	reg := &Registry{
		db:     db,
		byName: make(map[string]*Resource, len(resources)),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, res := range resources {
		cols, err := tableColumns(ctx, db, res.Table)
		if err != nil {
			return nil, err
		}
		hidden := make(map[string]bool, len(res.Hidden))
		for _, h := range res.Hidden {
			hidden[h] = true
		}
		res.Columns = nil
		res.fields = map[string]string{}
		res.managed = map[string]bool{}
		for _, c := range cols {
			if hidden[c] {
				continue
			}
			res.Columns = append(res.Columns, c)
			if managedColumns[c] {
				res.managed[c] = true
			} else {
				res.fields[strings.TrimSuffix(c, "_json")] = c
			}
		}
		reg.resources = append(reg.resources, res)
	}
	for i := range reg.resources {
		reg.byName[reg.resources[i].Name] = &reg.resources[i]
	}
	return reg, nil
}

func tableColumns(ctx context.Context, db *sqlx.DB, table string) ([]string, error) {
	var cols []struct {
		Name string `db:"name"`
	}
	if err := db.SelectContext(ctx, &cols, `SELECT name FROM pragma_table_info(?)`, table); err != nil {
		return nil, fmt.Errorf("read columns of %s: %w", table, err)
	}
	if len(cols) == 0 {
		return nil, fmt.Errorf("table %s does not exist", table)
	}
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names, nil
}

// Resources lists the registered resources.
func (r *Registry) Resources() []Resource {
	return r.resources
}

func (r *Registry) lookup(name string) (*Resource, error) {
	res, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, ErrUnknownResource)
	}
	return res, nil
}

// List returns one page of a resource. page is 1-based.
func (r *Registry) List(ctx context.Context, name string, page, perPage int) (Page, error) {
	res, err := r.lookup(name)
	if err != nil {
		return Page{}, err
	}
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = defaultPerPage
	}
	if perPage > maxPerPage {
		perPage = maxPerPage
	}

	var total int64
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM `+res.Table); err != nil {
		return Page{}, fmt.Errorf("count %s: %w", res.Name, err)
	}

	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY %s LIMIT ? OFFSET ?`,
		strings.Join(res.Columns, ", "), res.Table, res.OrderBy)
	rows, err := r.db.QueryxContext(ctx, query, perPage, (page-1)*perPage)
	if err != nil {
		return Page{}, fmt.Errorf("list %s: %w", res.Name, err)
	}
	defer rows.Close()

	records := []Record{}
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return Page{}, fmt.Errorf("scan %s: %w", res.Name, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return Page{}, err
	}
	return Page{Resource: res.Name, Records: records, Total: total, Page: page, PerPage: perPage}, nil
}

// Get returns a single record by id.
func (r *Registry) Get(ctx context.Context, name, id string) (Record, error) {
	res, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, strings.Join(res.Columns, ", "), res.Table)
	row := r.db.QueryRowxContext(ctx, query, id)
	values := map[string]interface{}{}
	if err := row.MapScan(values); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s %s: %w", res.Name, id, ErrRecordNotFound)
		}
		return nil, fmt.Errorf("get %s: %w", res.Name, err)
	}
	return normalize(values), nil
}

// Delete removes a record by id. Child rows follow the schema's cascades.
func (r *Registry) Delete(ctx context.Context, name, id string) error {
	res, err := r.lookup(name)
	if err != nil {
		return err
	}
	result, err := r.db.ExecContext(ctx, `DELETE FROM `+res.Table+` WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete %s: %w", res.Name, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%s %s: %w", res.Name, id, ErrRecordNotFound)
	}
	return nil
}

// Create inserts a record built from values, keyed by the names the console
// shows, and returns it as stored.
func (r *Registry) Create(ctx context.Context, name string, values map[string]interface{}) (Record, error) {
	res, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if res.NoCreate || res.ReadOnly {
		return nil, fmt.Errorf("create %s: %w", res.Name, ErrReadOnly)
	}
	cols, args, err := res.assignments(values)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	now := r.now()
	cols, args = append(cols, "id"), append(args, id)
	for _, c := range []string{"created_at", "updated_at"} {
		if res.managed[c] {
			cols, args = append(cols, c), append(args, now)
		}
	}
	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, res.Table, strings.Join(cols, ", "),
		strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))
	if _, err := r.db.ExecContext(ctx, query, args...); err != nil {
		return nil, writeError(res, "create", err)
	}
	return r.Get(ctx, name, id)
}

// Update changes the given fields of a record and returns it as stored.
func (r *Registry) Update(ctx context.Context, name, id string, values map[string]interface{}) (Record, error) {
	res, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if res.ReadOnly {
		return nil, fmt.Errorf("update %s: %w", res.Name, ErrReadOnly)
	}
	cols, args, err := res.assignments(values)
	if err != nil {
		return nil, err
	}
	if res.managed["updated_at"] {
		cols, args = append(cols, "updated_at"), append(args, r.now())
	}

	sets := make([]string, len(cols))
	for i, c := range cols {
		sets[i] = c + " = ?"
	}
	query := fmt.Sprintf(`UPDATE %s SET %s WHERE id = ?`, res.Table, strings.Join(sets, ", "))
	result, err := r.db.ExecContext(ctx, query, append(args, id)...)
	if err != nil {
		return nil, writeError(res, "update", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("%s %s: %w", res.Name, id, ErrRecordNotFound)
	}
	return r.Get(ctx, name, id)
}

// assignments turns console field values into column values. Unknown and
// hidden fields are rejected.
func (res *Resource) assignments(values map[string]interface{}) ([]string, []interface{}, error) {
	if len(values) == 0 {
		return nil, nil, fmt.Errorf("%w: no fields given", ErrInvalidRecord)
	}
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	cols := make([]string, 0, len(keys))
	args := make([]interface{}, 0, len(keys))
	for _, k := range keys {
		col, ok := res.fields[k]
		if !ok {
			return nil, nil, fmt.Errorf("%w: field %q is not writable", ErrInvalidRecord, k)
		}
		v := values[k]
		if strings.HasSuffix(col, "_json") {
			b, err := json.Marshal(v)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: field %q: %v", ErrInvalidRecord, k, err)
			}
			v = string(b)
		} else {
			switch v.(type) {
			case map[string]interface{}, []interface{}:
				return nil, nil, fmt.Errorf("%w: field %q must be a scalar", ErrInvalidRecord, k)
			}
		}
		cols = append(cols, col)
		args = append(args, v)
	}
	return cols, args, nil
}

func writeError(res *Resource, op string, err error) error {
	if strings.Contains(err.Error(), "constraint failed") {
		return fmt.Errorf("%w: %s", ErrInvalidRecord, err)
	}
	return fmt.Errorf("%s %s: %w", op, res.Name, err)
}

// Dashboard returns the record count of every resource.
func (r *Registry) Dashboard(ctx context.Context) (map[string]int64, error) {
	counts := make(map[string]int64, len(r.resources))
	for _, res := range r.resources {
		var n int64
		if err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+res.Table); err != nil {
			return nil, fmt.Errorf("count %s: %w", res.Name, err)
		}
		counts[res.Name] = n
	}
	return counts, nil
}

func scanRecord(rows *sqlx.Rows) (Record, error) {
	values := map[string]interface{}{}
	if err := rows.MapScan(values); err != nil {
		return nil, err
	}
	return normalize(values), nil
}

func normalize(values map[string]interface{}) Record {
	rec := make(Record, len(values))
	for col, v := range values {
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		if strings.HasSuffix(col, "_json") {
			if s, ok := v.(string); ok {
				var decoded interface{}
				if json.Unmarshal([]byte(s), &decoded) == nil {
					rec[strings.TrimSuffix(col, "_json")] = decoded
					continue
				}
			}
		}
		if t, ok := v.(time.Time); ok {
			v = t.UTC()
		}
		rec[col] = v
	}
	return rec
}
