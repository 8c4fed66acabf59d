package candidates

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirSourceOrderAndIdentity(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b-jane.md", "Name: Jane Doe\nEmail: jane@example.com\n\nBackend developer, Go, AWS")
	writeFile(t, dir, "a-john.txt", "Summary: Nurse with 5 years of ICU experience\nName: not a header")
	writeFile(t, dir, "c-notes.pdf", "binary")
	if err := os.Mkdir(filepath.Join(dir, "d-sub.txt"), 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	got, err := DirSource{Dir: dir}.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %d: %+v", len(got), got)
	}
	if got[0].ID != "a-john" || got[1].ID != "b-jane" {
		t.Fatalf("expected file name order, got %s, %s", got[0].ID, got[1].ID)
	}

	if got[0].Name != "" || !strings.HasPrefix(got[0].Text, "Summary: Nurse") || !strings.Contains(got[0].Text, "Name: not a header") {
		t.Fatalf("unexpected first candidate: %+v", got[0])
	}
	if got[1].Name != "Jane Doe" || got[1].Email != "jane@example.com" || got[1].Text != "Backend developer, Go, AWS" {
		t.Fatalf("unexpected second candidate: %+v", got[1])
	}
}

func TestDirSourceKeepsVeryLongLines(t *testing.T) {
	dir := t.TempDir()
	long := strings.Repeat("golang ", 1<<20)
	writeFile(t, dir, "long.txt", "Name: Long Line\r\n\r\n"+long+"\r\nlast line")

	got, err := DirSource{Dir: dir}.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := long + "\nlast line"
	if got[0].Name != "Long Line" || got[0].Text != want {
		t.Fatalf("resume text was altered: name %q, text length %d, want %d", got[0].Name, len(got[0].Text), len(want))
	}
}

func TestDirSourceErrors(t *testing.T) {
	empty := t.TempDir()
	if _, err := (DirSource{Dir: empty}).List(context.Background()); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}

	if _, err := (DirSource{Dir: filepath.Join(empty, "missing")}).List(context.Background()); err == nil || errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected read error, got %v", err)
	}
}

func TestStaticSourceReturnsCopy(t *testing.T) {
	src := StaticSource{{ID: "c1", Text: "resume"}}

	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got[0].ID = "changed"
	if src[0].ID != "c1" {
		t.Fatal("static source must hand out copies")
	}

	if _, err := (StaticSource{}).List(context.Background()); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
}

type fakeRows struct {
	data   [][]string
	pos    int
	err    error
	closed bool
}

func (r *fakeRows) Close()                                       { r.closed = true }
func (r *fakeRows) Err() error                                   { return r.err }
func (r *fakeRows) CommandTag() pgconn.CommandTag                { return pgconn.CommandTag{} }
func (r *fakeRows) FieldDescriptions() []pgconn.FieldDescription { return nil }
func (r *fakeRows) Values() ([]any, error)                       { return nil, nil }
func (r *fakeRows) RawValues() [][]byte                          { return nil }
func (r *fakeRows) Conn() *pgx.Conn                              { return nil }

func (r *fakeRows) Next() bool {
	if r.pos >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *fakeRows) Scan(dest ...any) error {
	row := r.data[r.pos-1]
	for i, d := range dest {
		*(d.(*string)) = row[i]
	}
	return nil
}

type fakeQuerier struct {
	rows  *fakeRows
	err   error
	query string
}

func (q *fakeQuerier) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	q.query = sql
	if q.err != nil {
		return nil, q.err
	}
	return q.rows, nil
}

func TestPostgresSourceList(t *testing.T) {
	rows := &fakeRows{data: [][]string{
		{"1", "Jane", "jane@example.com", "Go developer"},
		{"2", "", "", "Nurse"},
	}}
	db := &fakeQuerier{rows: rows}
	src := &PostgresSource{db: db, table: "hr.resumes"}

	got, err := src.List(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Jane" || got[1].Text != "Nurse" {
		t.Fatalf("unexpected candidates: %+v", got)
	}
	if !rows.closed {
		t.Fatal("expected rows to be closed")
	}
	if !strings.Contains(db.query, `FROM "hr"."resumes" ORDER BY id`) {
		t.Fatalf("unexpected query: %s", db.query)
	}
}

func TestPostgresSourceErrors(t *testing.T) {
	src := &PostgresSource{db: &fakeQuerier{rows: &fakeRows{}}}
	if _, err := src.List(context.Background()); !errors.Is(err, ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}

	boom := errors.New("connection refused")
	src = &PostgresSource{db: &fakeQuerier{err: boom}}
	if _, err := src.List(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}

	src = &PostgresSource{db: &fakeQuerier{rows: &fakeRows{err: boom}}}
	if _, err := src.List(context.Background()); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped rows error, got %v", err)
	}

	if !strings.Contains(src.query(), `FROM "candidates"`) {
		t.Fatalf("expected default table, got %s", src.query())
	}
}
