package postgres

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"testing"
	"time"

	_ "github.com/lib/pq"

	"github.com/stone-edge/queue_layer/internal/app/domain/observation"
	"github.com/stone-edge/queue_layer/internal/app/domain/program"
	"github.com/stone-edge/queue_layer/internal/app/storage"
)

func TestStoreIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping postgres integration test")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec(Schema); err != nil {
		t.Fatalf("apply schema: %v", err)
	}

	store := New(db)
	ctx := context.Background()

	p, err := store.CreateProgram(ctx, program.Program{Owner: "alice", Name: "galaxies"})
	if err != nil {
		t.Fatalf("create program: %v", err)
	}

	req := observation.Request{
		Owner:         "alice",
		ProgramID:     p.ID,
		Target:        "M31",
		ExposureTime:  30,
		ExposureCount: 3,
		Binning:       2,
		Filters:       []string{"clear", "r-band"},
		Options:       observation.Options{Lunar: "15"},
		SubmitDate:    time.Now().UTC(),
	}
	created, err := store.CreateObservation(ctx, req)
	if err != nil {
		t.Fatalf("create observation: %v", err)
	}
	defer store.DeleteObservation(ctx, created.ID)

	got, err := store.GetObservation(ctx, created.ID)
	if err != nil {
		t.Fatalf("get observation: %v", err)
	}
	if got.Target != "M31" || len(got.Filters) != 2 || got.Options.Lunar != "15" {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if _, err := store.SetObservationCompleted(ctx, created.ID, true); err != nil {
		t.Fatalf("set completed: %v", err)
	}
	pending, err := store.ListPendingObservations(ctx)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	for _, r := range pending {
		if r.ID == created.ID {
			t.Fatal("completed observation still pending")
		}
	}

	if _, err := store.GetObservation(ctx, "00000000-0000-0000-0000-000000000000"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
