package cart

import (
	"context"
	"errors"
	"testing"

	"chatcommerce/internal/domain"
	"chatcommerce/internal/kv"
)

func TestUpdateCreatesAndRecalculates(t *testing.T) {
	ctx := context.Background()
	mem := kv.NewMemory()
	keys := kv.Keys{Brand: "test"}
	repo := NewStore(mem, keys)

	if _, err := repo.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	c, err := repo.Update(ctx, "u1", func(c *domain.Cart) error {
		c.AddLine(domain.Product{ID: "P1", Name: "One", Price: 100}, 2)
		return nil
	})
	if err != nil || c.Total != 200 {
		t.Fatalf("update: %+v %v", c, err)
	}

	boom := domain.ErrUnknownProduct
	if _, err := repo.Update(ctx, "u1", func(c *domain.Cart) error {
		c.Lines = nil
		return boom
	}); !errors.Is(err, boom) {
		t.Fatalf("expected unknown product error, got %v", err)
	}
	stored, _ := repo.Get(ctx, "u1")
	if stored.Total != 200 || len(stored.Lines) != 1 {
		t.Fatalf("expected aborted update to leave cart unchanged, got %+v", stored)
	}

	_ = mem.Set(ctx, keys.Cart("u2"), []byte("{not json"), 0)
	corrupt, err := repo.Get(ctx, "u2")
	if err != nil || !corrupt.Empty() {
		t.Fatalf("expected corrupt cart to read as empty, got %+v %v", corrupt, err)
	}

	if err := repo.Delete(ctx, "u1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := repo.Get(ctx, "u1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected cart deleted, got %v", err)
	}
}
