package repository

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/reelgrab/reelgrab/internal/domain"
)

func newTestRepo(t *testing.T) *HistoryRepository {
	t.Helper()
	repo, err := NewHistoryRepository(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryRepository failed: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestHistoryRepository_InsertAndRecent(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		err := repo.Insert(ctx, &domain.DownloadEntry{
			URL:       "https://www.instagram.com/p/ABC/",
			Platform:  "instagram",
			Author:    "bob",
			Filename:  "v.mp4",
			Status:    domain.DownloadStatusCompleted,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		if err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	entries, err := repo.Recent(ctx, 2)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("Recent returned %d entries, want 2", len(entries))
	}
	// Newest first
	if !entries[0].CreatedAt.After(entries[1].CreatedAt) {
		t.Errorf("entries not ordered newest first: %v, %v",
			entries[0].CreatedAt, entries[1].CreatedAt)
	}
}

func TestHistoryRepository_InsertFillsDefaults(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	entry := &domain.DownloadEntry{
		URL:      "https://vm.tiktok.com/X/",
		Platform: "tiktok",
		Status:   domain.DownloadStatusFailed,
		Detail:   "post not found",
	}
	if err := repo.Insert(ctx, entry); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	if entry.ID == "" {
		t.Error("Insert should assign an ID")
	}
	if entry.CreatedAt.IsZero() {
		t.Error("Insert should assign a timestamp")
	}

	entries, err := repo.Recent(ctx, 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("Recent returned %d entries, want 1", len(entries))
	}
	if entries[0].Status != domain.DownloadStatusFailed || entries[0].Detail != "post not found" {
		t.Errorf("entry = %+v", entries[0])
	}
}

func TestHistoryRepository_RecentEmpty(t *testing.T) {
	repo := newTestRepo(t)

	entries, err := repo.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("Recent failed: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Recent on empty db returned %d entries", len(entries))
	}
}

func TestHistoryRepository_Ping(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
