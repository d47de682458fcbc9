package memory

import (
	"context"
	"errors"
	"testing"

	"pump-sniper/internal/domain"
	"pump-sniper/internal/storage"
)

func entry(id, mint string, ts int64) *domain.JournalEntry {
	return &domain.JournalEntry{
		ID:          id,
		Mint:        mint,
		Side:        domain.SideBuy,
		AmountSOL:   0.005,
		Mode:        "local",
		TimestampMs: ts,
	}
}

func TestInsertAndGetByMint(t *testing.T) {
	s := NewJournalStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("b", "M1", 200)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, entry("a", "M1", 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	if err := s.Insert(ctx, entry("c", "M2", 150)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	got, err := s.GetByMint(ctx, "M1")
	if err != nil {
		t.Fatalf("GetByMint: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d entries, want 2", len(got))
	}
	if got[0].ID != "a" || got[1].ID != "b" {
		t.Errorf("order = %s, %s, want a, b", got[0].ID, got[1].ID)
	}
}

func TestInsert_Duplicate(t *testing.T) {
	s := NewJournalStore()
	ctx := context.Background()

	if err := s.Insert(ctx, entry("a", "M1", 100)); err != nil {
		t.Fatalf("Insert: %v", err)
	}
	err := s.Insert(ctx, entry("a", "M1", 100))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Errorf("err = %v, want ErrDuplicateKey", err)
	}
}

func TestInsert_Invalid(t *testing.T) {
	s := NewJournalStore()
	ctx := context.Background()

	if err := s.Insert(ctx, nil); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("nil entry: %v", err)
	}
	if err := s.Insert(ctx, entry("", "M1", 100)); !errors.Is(err, storage.ErrInvalidInput) {
		t.Errorf("empty ID: %v", err)
	}
}

func TestGetByTimeRange(t *testing.T) {
	s := NewJournalStore()
	ctx := context.Background()

	for _, e := range []*domain.JournalEntry{
		entry("a", "M1", 100),
		entry("b", "M2", 200),
		entry("c", "M3", 300),
	} {
		if err := s.Insert(ctx, e); err != nil {
			t.Fatalf("Insert: %v", err)
		}
	}

	got, err := s.GetByTimeRange(ctx, 150, 300)
	if err != nil {
		t.Fatalf("GetByTimeRange: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[1].ID != "c" {
		t.Errorf("got %v", got)
	}
}

func TestInsert_CopiesEntry(t *testing.T) {
	s := NewJournalStore()
	ctx := context.Background()

	e := entry("a", "M1", 100)
	s.Insert(ctx, e)
	e.Mint = "MUTATED"

	got, _ := s.GetByMint(ctx, "M1")
	if len(got) != 1 {
		t.Fatal("stored entry affected by caller mutation")
	}
}
