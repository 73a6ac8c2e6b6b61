package store

import (
	"context"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// fakeQuerier serves resource rows from an in-memory restricted value and
// records every statement it sees, in order.
type fakeQuerier struct {
	restricted string
	statements []string
}

func (q *fakeQuerier) Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	q.statements = append(q.statements, sql)
	return &fakeRows{
		fields: []pgconn.FieldDescription{{Name: "id"}, {Name: "restricted"}},
		rows:   [][]any{{"res-1", q.restricted}},
	}, nil
}

func (q *fakeQuerier) QueryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	return nil
}

func (q *fakeQuerier) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.statements = append(q.statements, sql)
	if len(args) > 0 {
		if v, ok := args[0].(string); ok {
			q.restricted = v
		}
	}
	return pgconn.NewCommandTag("UPDATE 1"), nil
}

type fakeRows struct {
	fields []pgconn.FieldDescription
	rows   [][]any
	idx    int
}

func (r *fakeRows) Close()                                       {}
func (r *fakeRows) Err() error                                   { return nil }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return r.fields }
func (r *fakeRows) Next() bool                                   { r.idx++; return r.idx <= len(r.rows) }
func (r *fakeRows) Scan(dest ...any) error                       { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return r.rows[r.idx-1], nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func TestUpdateResourceRestriction_PrevReadIsLocked(t *testing.T) {
	q := &fakeQuerier{restricted: `{"level":"restricted","allowed_users":"a"}`}

	prev, updated, err := updateResourceRestriction(context.Background(), q, "res-1",
		`{"level":"restricted","allowed_users":"a,b"}`)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	if prev != `{"level":"restricted","allowed_users":"a"}` {
		t.Fatalf("expected previous value from the pre-write read, got %v", prev)
	}
	if updated["restricted"] != `{"level":"restricted","allowed_users":"a,b"}` {
		t.Fatalf("expected updated record to carry the new value, got %v", updated["restricted"])
	}

	if len(q.statements) != 3 {
		t.Fatalf("expected locked read, update, re-read; got %d statements", len(q.statements))
	}
	if !strings.Contains(q.statements[0], "FOR UPDATE") {
		t.Fatalf("expected the previous-value read to lock the row, got: %s", q.statements[0])
	}
	if !strings.Contains(q.statements[1], "UPDATE resources SET restricted") {
		t.Fatalf("expected the write as the second statement, got: %s", q.statements[1])
	}
}

func TestUpdateResourceRestriction_PrevReadBeforeWrite(t *testing.T) {
	// Two writers that each read prev after the other's write would diff
	// against a post-write snapshot; the single-querier sequence must read
	// the old value before any UPDATE runs.
	q := &fakeQuerier{restricted: `{"level":"restricted","allowed_users":"a"}`}

	prev, _, err := updateResourceRestriction(context.Background(), q, "res-1",
		`{"level":"restricted","allowed_users":"a,b,c"}`)
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if strings.Contains(prev.(string), "b") {
		t.Fatalf("previous value already contains the new grant: %v", prev)
	}
}
