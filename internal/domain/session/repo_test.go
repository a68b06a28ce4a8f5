package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ehr/notewriter/internal/domain/catalog"
)

func openSQLite(t *testing.T) *SQLiteRepo {
	t.Helper()
	repo, err := OpenSQLiteRepo(filepath.Join(t.TempDir(), "data", "sessions.db"))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

// exerciseRepository runs the same contract against every backend.
func exerciseRepository(t *testing.T, repo Repository) {
	ctx := context.Background()

	t.Run("CreateAndGet", func(t *testing.T) {
		sess := &Session{Label: "bay 2"}
		if err := repo.Create(ctx, sess); err != nil {
			t.Fatalf("Create: %v", err)
		}
		if sess.ID == uuid.Nil {
			t.Fatal("expected generated id")
		}
		if sess.VersionID != 1 {
			t.Errorf("expected version 1, got %d", sess.VersionID)
		}
		got, err := repo.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if got.Label != "bay 2" || got.Space == nil {
			t.Errorf("unexpected session %+v", got)
		}
	})

	t.Run("UpdateKeepsSpace", func(t *testing.T) {
		sess := &Session{}
		if err := repo.Create(ctx, sess); err != nil {
			t.Fatal(err)
		}
		sess.Space.Bucket(catalog.ModeROS, "Eyes").MarkNegative("eye_pain")
		sess.Space.Globals.SetAcute(false)
		sess.VersionID = 7
		if err := repo.Update(ctx, sess); err != nil {
			t.Fatalf("Update: %v", err)
		}
		got, err := repo.GetByID(ctx, sess.ID)
		if err != nil {
			t.Fatal(err)
		}
		if got.VersionID != 7 {
			t.Errorf("expected version 7, got %d", got.VersionID)
		}
		if !got.Space.Peek(catalog.ModeROS, "Eyes").Chip("eye_pain").IsNegative() {
			t.Error("expected stored chip state")
		}
		if got.Space.Globals.Acute() {
			t.Error("expected stored acuity flag")
		}
	})

	t.Run("MissingIsNotFound", func(t *testing.T) {
		id := uuid.New()
		if _, err := repo.GetByID(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetByID: expected ErrNotFound, got %v", err)
		}
		if err := repo.Update(ctx, &Session{ID: id}); !errors.Is(err, ErrNotFound) {
			t.Errorf("Update: expected ErrNotFound, got %v", err)
		}
		if err := repo.Delete(ctx, id); !errors.Is(err, ErrNotFound) {
			t.Errorf("Delete: expected ErrNotFound, got %v", err)
		}
	})

	t.Run("ListAndDeleteAll", func(t *testing.T) {
		if _, err := repo.DeleteAll(ctx); err != nil {
			t.Fatal(err)
		}
		var last uuid.UUID
		for i := 0; i < 3; i++ {
			sess := &Session{}
			if err := repo.Create(ctx, sess); err != nil {
				t.Fatal(err)
			}
			last = sess.ID
			time.Sleep(2 * time.Millisecond)
		}

		items, total, err := repo.List(ctx, 2, 0)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		if total != 3 || len(items) != 2 {
			t.Fatalf("expected 2 of 3, got %d of %d", len(items), total)
		}
		if items[0].ID != last {
			t.Error("expected newest session first")
		}
		items, _, _ = repo.List(ctx, 2, 2)
		if len(items) != 1 {
			t.Errorf("expected 1 item on second page, got %d", len(items))
		}

		n, err := repo.DeleteAll(ctx)
		if err != nil || n != 3 {
			t.Fatalf("DeleteAll: n=%d err=%v", n, err)
		}
		_, total, _ = repo.List(ctx, 10, 0)
		if total != 0 {
			t.Errorf("expected empty repository, got %d", total)
		}
	})
}

func TestMemoryRepo(t *testing.T) {
	exerciseRepository(t, NewMemoryRepo())
}

func TestSQLiteRepo(t *testing.T) {
	repo := openSQLite(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Fatalf("Ping: %v", err)
	}
	exerciseRepository(t, repo)
}

func TestSQLiteRepo_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sessions.db")
	repo, err := OpenSQLiteRepo(path)
	if err != nil {
		t.Fatal(err)
	}
	sess := &Session{Label: "persisted"}
	if err := repo.Create(context.Background(), sess); err != nil {
		t.Fatal(err)
	}
	repo.Close()

	repo, err = OpenSQLiteRepo(path)
	if err != nil {
		t.Fatal(err)
	}
	defer repo.Close()
	got, err := repo.GetByID(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("expected session to survive reopen: %v", err)
	}
	if got.Label != "persisted" {
		t.Errorf("expected label persisted, got %q", got.Label)
	}
}
