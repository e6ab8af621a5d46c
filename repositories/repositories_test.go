package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/blogem/planning-tools/database"
	"github.com/blogem/planning-tools/models"
	_ "github.com/mattn/go-sqlite3"
)

func setupTestDB(t *testing.T) *sql.DB {
	// Create a temporary database for testing
	dbPath := filepath.Join(t.TempDir(), "test.db")

	db, err := database.Initialize(dbPath)
	if err != nil {
		t.Fatalf("Failed to initialize test database: %v", err)
	}
	t.Cleanup(func() {
		db.Close()
		os.Remove(dbPath)
	})

	return db
}

func testEvent(id string) *models.Event {
	return &models.Event{
		ID:       id,
		Title:    "Sprint start",
		Date:     "2025-05-05",
		Color:    "#336699",
		Icon:     "flag",
		Category: "sprint_start",
	}
}

func entrySnapshot(kind string) []byte {
	return []byte(fmt.Sprintf(`{"kind":%q,"version":1,"fields":{}}`, kind))
}

func TestEventRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	event := testEvent("evt-1")
	if err := repo.Create(ctx, event); err != nil {
		t.Fatalf("Failed to create event: %v", err)
	}
	if event.CreatedAt.IsZero() || event.UpdatedAt.IsZero() {
		t.Error("Expected timestamps to be set on creation")
	}

	retrieved, err := repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Failed to get event by ID: %v", err)
	}
	if retrieved.Title != event.Title {
		t.Errorf("Expected title %s, got %s", event.Title, retrieved.Title)
	}

	// Unknown id maps to ErrNotFound
	if _, err := repo.GetByID(ctx, "missing"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}

	event.Title = "Sprint start (moved)"
	if err := repo.Update(ctx, event); err != nil {
		t.Fatalf("Failed to update event: %v", err)
	}
	updated, err := repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Failed to get updated event: %v", err)
	}
	if updated.Title != "Sprint start (moved)" {
		t.Errorf("Expected updated title, got %s", updated.Title)
	}

	if err := repo.Update(ctx, testEvent("missing")); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on updating missing event, got %v", err)
	}

	if err := repo.Delete(ctx, "evt-1"); err != nil {
		t.Fatalf("Failed to delete event: %v", err)
	}
	if err := repo.Delete(ctx, "evt-1"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on deleting twice, got %v", err)
	}
}

func TestEventRepositoryFilter(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	events := []*models.Event{
		{ID: "a", Title: "MEP april", Date: "2025-04-10", Color: "#111111", Icon: "rocket", Category: "mep"},
		{ID: "b", Title: "Code freeze", Date: "2025-04-05", Color: "#222222", Icon: "lock", Category: "code_freeze"},
		{ID: "c", Title: "MEP may", Date: "2025-05-12", Color: "#333333", Icon: "rocket", Category: "mep"},
	}
	for _, event := range events {
		if err := repo.Create(ctx, event); err != nil {
			t.Fatalf("Failed to create event %s: %v", event.ID, err)
		}
	}

	all, err := repo.GetAll(ctx, EventFilter{})
	if err != nil {
		t.Fatalf("Failed to get all events: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Expected 3 events, got %d", len(all))
	}
	// Ordered by start date ascending
	if all[0].ID != "b" || all[1].ID != "a" || all[2].ID != "c" {
		t.Errorf("Expected date order b, a, c; got %s, %s, %s", all[0].ID, all[1].ID, all[2].ID)
	}

	meps, err := repo.GetAll(ctx, EventFilter{Category: "mep"})
	if err != nil {
		t.Fatalf("Failed to filter by category: %v", err)
	}
	if len(meps) != 2 {
		t.Errorf("Expected 2 mep events, got %d", len(meps))
	}

	april, err := repo.GetAll(ctx, EventFilter{DateFrom: "2025-04-01", DateTo: "2025-04-30"})
	if err != nil {
		t.Fatalf("Failed to filter by date range: %v", err)
	}
	if len(april) != 2 {
		t.Errorf("Expected 2 april events, got %d", len(april))
	}

	search, err := repo.GetAll(ctx, EventFilter{Search: "freeze"})
	if err != nil {
		t.Fatalf("Failed to search events: %v", err)
	}
	if len(search) != 1 || search[0].ID != "b" {
		t.Errorf("Expected only the code freeze event, got %d results", len(search))
	}
}

func TestEventRepositorySaveUpsert(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewEventRepository(db)

	created := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	event := testEvent("evt-1")
	event.CreatedAt = created
	event.UpdatedAt = created

	// Save inserts when the row does not exist and keeps the timestamps
	if err := repo.Save(ctx, event); err != nil {
		t.Fatalf("Failed to save new event: %v", err)
	}
	stored, err := repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Failed to get saved event: %v", err)
	}
	if !stored.CreatedAt.Equal(created) {
		t.Errorf("Expected created_at preserved as %v, got %v", created, stored.CreatedAt)
	}

	// Save overwrites the existing row
	event.Title = "Restored title"
	if err := repo.Save(ctx, event); err != nil {
		t.Fatalf("Failed to save existing event: %v", err)
	}
	stored, err = repo.GetByID(ctx, "evt-1")
	if err != nil {
		t.Fatalf("Failed to get overwritten event: %v", err)
	}
	if stored.Title != "Restored title" {
		t.Errorf("Expected overwritten title, got %s", stored.Title)
	}
}

func TestReleaseRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewReleaseRepository(db)

	release := &models.Release{
		ID:          "rel-1",
		Name:        "Release 25.5",
		ReleaseDate: time.Date(2025, 5, 20, 10, 0, 0, 0, time.UTC),
		Status:      "draft",
		Type:        "release",
		Squads:      models.DefaultSquads(),
	}
	if err := repo.Create(ctx, release); err != nil {
		t.Fatalf("Failed to create release: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, "rel-1")
	if err != nil {
		t.Fatalf("Failed to get release: %v", err)
	}
	if len(retrieved.Squads) != models.DefaultSquadCount {
		t.Fatalf("Expected %d squads, got %d", models.DefaultSquadCount, len(retrieved.Squads))
	}

	// Update one squad row
	squad := &models.Squad{SquadNumber: 3, IsCompleted: true, FeaturesEmptyConfirmed: true}
	if err := repo.UpdateSquad(ctx, "rel-1", squad); err != nil {
		t.Fatalf("Failed to update squad: %v", err)
	}
	retrieved, err = repo.GetByID(ctx, "rel-1")
	if err != nil {
		t.Fatalf("Failed to get release after squad update: %v", err)
	}
	if !retrieved.Squads[2].IsCompleted || !retrieved.Squads[2].FeaturesEmptyConfirmed {
		t.Error("Expected squad 3 checklist updated")
	}
	if retrieved.Squads[0].IsCompleted {
		t.Error("Expected squad 1 untouched")
	}

	if err := repo.UpdateSquad(ctx, "rel-1", &models.Squad{SquadNumber: 9}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown squad, got %v", err)
	}

	// Update release fields only
	release.Status = "in_progress"
	if err := repo.Update(ctx, release); err != nil {
		t.Fatalf("Failed to update release: %v", err)
	}
	retrieved, err = repo.GetByID(ctx, "rel-1")
	if err != nil {
		t.Fatalf("Failed to get updated release: %v", err)
	}
	if retrieved.Status != "in_progress" {
		t.Errorf("Expected status in_progress, got %s", retrieved.Status)
	}
	if !retrieved.Squads[2].IsCompleted {
		t.Error("Expected squads untouched by release update")
	}

	// Delete cascades to squads
	if err := repo.Delete(ctx, "rel-1"); err != nil {
		t.Fatalf("Failed to delete release: %v", err)
	}
	var squadCount int
	if err := db.QueryRow("SELECT COUNT(*) FROM squads WHERE release_id = ?", "rel-1").Scan(&squadCount); err != nil {
		t.Fatalf("Failed to count squads: %v", err)
	}
	if squadCount != 0 {
		t.Errorf("Expected squads deleted with their release, found %d", squadCount)
	}
}

func TestReleaseRepositorySaveReplacesSquads(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewReleaseRepository(db)

	release := &models.Release{
		ID:          "rel-1",
		Name:        "Release 25.6",
		ReleaseDate: time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC),
		Status:      "in_progress",
		Type:        "release",
		Squads:      models.DefaultSquads(),
	}
	release.Squads[0].IsCompleted = true
	if err := repo.Create(ctx, release); err != nil {
		t.Fatalf("Failed to create release: %v", err)
	}

	// Save with fresh squads replaces the checked ones
	release.ResetSquads()
	if err := repo.Save(ctx, release); err != nil {
		t.Fatalf("Failed to save release: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, "rel-1")
	if err != nil {
		t.Fatalf("Failed to get release: %v", err)
	}
	if len(retrieved.Squads) != models.DefaultSquadCount {
		t.Fatalf("Expected %d squads, got %d", models.DefaultSquadCount, len(retrieved.Squads))
	}
	if retrieved.Squads[0].IsCompleted {
		t.Error("Expected squads replaced with fresh defaults")
	}
}

func TestUserRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewUserRepository(db)

	user := &models.User{ID: "auth0|1", Email: "marie@example.com", Name: "Marie Dupont"}
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("Failed to upsert user: %v", err)
	}

	retrieved, err := repo.GetByID(ctx, "auth0|1")
	if err != nil {
		t.Fatalf("Failed to get user: %v", err)
	}
	if retrieved.Name != "Marie Dupont" {
		t.Errorf("Expected name Marie Dupont, got %s", retrieved.Name)
	}

	// Upsert refreshes email and name, keeps created_at
	user.Name = "Marie Durand"
	if err := repo.Upsert(ctx, user); err != nil {
		t.Fatalf("Failed to upsert user again: %v", err)
	}
	refreshed, err := repo.GetByID(ctx, "auth0|1")
	if err != nil {
		t.Fatalf("Failed to get refreshed user: %v", err)
	}
	if refreshed.Name != "Marie Durand" {
		t.Errorf("Expected refreshed name, got %s", refreshed.Name)
	}
	if !refreshed.CreatedAt.Equal(retrieved.CreatedAt) {
		t.Errorf("Expected created_at preserved, got %v then %v", retrieved.CreatedAt, refreshed.CreatedAt)
	}

	if _, err := repo.GetByID(ctx, "auth0|2"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestHistoryRepository(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db, EventHistoryTable)

	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		entry := &models.HistoryEntry{
			ID:        fmt.Sprintf("entry-%d", i),
			Action:    models.ActionCreate,
			SubjectID: fmt.Sprintf("evt-%d", i),
			NewData:   entrySnapshot("event"),
			ActorID:   "auth0|1",
			ActorName: "Marie D.",
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}
		if err := repo.Insert(ctx, entry); err != nil {
			t.Fatalf("Failed to insert entry %d: %v", i, err)
		}
	}

	count, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count entries: %v", err)
	}
	if count != 5 {
		t.Errorf("Expected 5 entries, got %d", count)
	}

	// Recent is newest first
	recent, err := repo.Recent(ctx, 3)
	if err != nil {
		t.Fatalf("Failed to get recent entries: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 recent entries, got %d", len(recent))
	}
	if recent[0].ID != "entry-4" || recent[2].ID != "entry-2" {
		t.Errorf("Expected newest first, got %s .. %s", recent[0].ID, recent[2].ID)
	}
	if recent[0].ActorName != "Marie D." {
		t.Errorf("Expected actor name preserved, got %s", recent[0].ActorName)
	}

	// Oldest is oldest first
	oldest, err := repo.Oldest(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to get oldest entries: %v", err)
	}
	if len(oldest) != 2 || oldest[0].ID != "entry-0" || oldest[1].ID != "entry-1" {
		t.Errorf("Expected the two oldest entries, got %v", oldest)
	}

	// Delete consumes exactly one entry; a second delete reports ErrNotFound
	if err := repo.Delete(ctx, "entry-0"); err != nil {
		t.Fatalf("Failed to delete entry: %v", err)
	}
	if err := repo.Delete(ctx, "entry-0"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected ErrNotFound on second delete, got %v", err)
	}

	// DeleteMany tolerates ids that are already gone
	if err := repo.DeleteMany(ctx, []string{"entry-1", "entry-0", "nope"}); err != nil {
		t.Fatalf("Failed to delete many: %v", err)
	}
	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count after delete many: %v", err)
	}
	if count != 3 {
		t.Errorf("Expected 3 entries left, got %d", count)
	}

	if err := repo.DeleteAll(ctx); err != nil {
		t.Fatalf("Failed to clear journal: %v", err)
	}
	count, err = repo.Count(ctx)
	if err != nil {
		t.Fatalf("Failed to count after clear: %v", err)
	}
	if count != 0 {
		t.Errorf("Expected empty journal, got %d", count)
	}
}

func TestHistoryRepositoryOldestTieBreak(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db, ReleaseHistoryTable)

	// Same timestamp: insertion order decides which is older.
	when := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	for _, id := range []string{"first", "second", "third"} {
		entry := &models.HistoryEntry{
			ID:           id,
			Action:       models.ActionDelete,
			SubjectID:    "rel-1",
			PreviousData: entrySnapshot("release"),
			Timestamp:    when,
		}
		if err := repo.Insert(ctx, entry); err != nil {
			t.Fatalf("Failed to insert entry %s: %v", id, err)
		}
	}

	oldest, err := repo.Oldest(ctx, 2)
	if err != nil {
		t.Fatalf("Failed to get oldest entries: %v", err)
	}
	if oldest[0].ID != "first" || oldest[1].ID != "second" {
		t.Errorf("Expected insertion order tie break, got %s, %s", oldest[0].ID, oldest[1].ID)
	}
}

func TestHistoryRepositoryRejectsInvalidEntry(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repo := NewHistoryRepository(db, EventHistoryTable)

	entry := &models.HistoryEntry{
		ID:        "bad",
		Action:    models.ActionCreate,
		SubjectID: "evt-1",
		// Missing the new snapshot a create requires.
	}
	if err := repo.Insert(ctx, entry); !errors.Is(err, models.ErrInvalidEntry) {
		t.Errorf("Expected ErrInvalidEntry, got %v", err)
	}
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := NewRepositories(db)

	failed := errors.New("boom")
	err := repos.WithTx(ctx, func(tx *Repositories) error {
		if err := tx.Events.Create(ctx, testEvent("evt-tx")); err != nil {
			return err
		}
		return failed
	})
	if !errors.Is(err, failed) {
		t.Fatalf("Expected the inner error, got %v", err)
	}

	// The insert must not have survived the rollback
	if _, err := repos.Events.GetByID(ctx, "evt-tx"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected event rolled back, got %v", err)
	}
}

func TestWithTxCommits(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)
	repos := NewRepositories(db)

	err := repos.WithTx(ctx, func(tx *Repositories) error {
		if err := tx.Events.Create(ctx, testEvent("evt-tx")); err != nil {
			return err
		}
		return tx.EventHistory.Insert(ctx, &models.HistoryEntry{
			ID:        "entry-tx",
			Action:    models.ActionCreate,
			SubjectID: "evt-tx",
			NewData:   entrySnapshot("event"),
			Timestamp: time.Now().UTC(),
		})
	})
	if err != nil {
		t.Fatalf("Transaction failed: %v", err)
	}

	if _, err := repos.Events.GetByID(ctx, "evt-tx"); err != nil {
		t.Errorf("Expected committed event, got %v", err)
	}
	if _, err := repos.EventHistory.GetByID(ctx, "entry-tx"); err != nil {
		t.Errorf("Expected committed history entry, got %v", err)
	}
}
