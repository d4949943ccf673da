package pgstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/pashagolub/pgxmock/v4"

	"taskmatch/internal/graph"
	"taskmatch/internal/models"
)

var nodeColumns = []string{"node_id", "name", "description", "type", "status", "level", "path"}

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func TestFetchSnapshot(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT node_id, name, description, type, status, level, path FROM nodes WHERE project_id = \$1`).
		WithArgs("acme/app").
		WillReturnRows(mock.NewRows(nodeColumns).
			AddRow("epic-1", "Auth", (*string)(nil), strPtr("epic"), strPtr("todo"), intPtr(0), (*string)(nil)).
			AddRow("T-42", "Login button", strPtr("navbar"), strPtr("Frontend"), strPtr("weird"), intPtr(2), strPtr("web/**")))
	mock.ExpectQuery(`SELECT parent_node_id, child_node_id FROM edges WHERE project_id = \$1`).
		WithArgs("acme/app").
		WillReturnRows(mock.NewRows([]string{"parent_node_id", "child_node_id"}).AddRow("epic-1", "T-42"))
	mock.ExpectQuery(`SELECT source, target, label FROM relations WHERE project_id = \$1`).
		WithArgs("acme/app").
		WillReturnRows(mock.NewRows([]string{"source", "target", "label"}).AddRow("T-42", "epic-1", (*string)(nil)))

	snap, err := New(mock).FetchSnapshot(context.Background(), "acme/app")
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}

	nodes := snap.Nodes()
	want := []models.TaskNode{
		{ID: "epic-1", Name: "Auth", Type: models.TypeEpic, Status: models.StatusTodo},
		{ID: "T-42", Name: "Login button", Description: "navbar", Type: models.TypeFrontend, Status: models.DefaultNodeStatus, Level: 2, Path: "web/**"},
	}
	if !reflect.DeepEqual(nodes, want) {
		t.Fatalf("nodes = %+v, want %+v", nodes, want)
	}
	if got := snap.Ancestors("T-42"); !reflect.DeepEqual(got, []string{"epic-1"}) {
		t.Fatalf("ancestors = %v", got)
	}
	if got := snap.Related("epic-1"); !reflect.DeepEqual(got, []string{"T-42"}) {
		t.Fatalf("related = %v", got)
	}
}

func TestFetchSnapshotUnknownProject(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM nodes WHERE project_id = \$1`).
		WithArgs("ghost/repo").
		WillReturnRows(mock.NewRows(nodeColumns))

	snap, err := New(mock).FetchSnapshot(context.Background(), "ghost/repo")
	if err != nil {
		t.Fatalf("fetch snapshot: %v", err)
	}
	if snap.Len() != 0 {
		t.Fatalf("expected empty snapshot, got %d nodes", snap.Len())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestFetchSnapshotDuplicateIDs(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	mock.ExpectQuery(`SELECT (.+) FROM nodes`).
		WithArgs("acme/app").
		WillReturnRows(mock.NewRows(nodeColumns).
			AddRow("T-1", "a", (*string)(nil), (*string)(nil), (*string)(nil), (*int)(nil), (*string)(nil)).
			AddRow("T-1", "b", (*string)(nil), (*string)(nil), (*string)(nil), (*int)(nil), (*string)(nil)))
	mock.ExpectQuery(`SELECT (.+) FROM edges`).WithArgs("acme/app").
		WillReturnRows(mock.NewRows([]string{"parent_node_id", "child_node_id"}))
	mock.ExpectQuery(`SELECT (.+) FROM relations`).WithArgs("acme/app").
		WillReturnRows(mock.NewRows([]string{"source", "target", "label"}))

	_, err = New(mock).FetchSnapshot(context.Background(), "acme/app")
	if !graph.IsConfigurationError(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestFetchSnapshotQueryError(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("new mock pool: %v", err)
	}
	defer mock.Close()

	boom := errors.New("connection reset")
	mock.ExpectQuery(`SELECT (.+) FROM nodes`).WithArgs("acme/app").WillReturnError(boom)

	_, err = New(mock).FetchSnapshot(context.Background(), "acme/app")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped query error, got %v", err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}
