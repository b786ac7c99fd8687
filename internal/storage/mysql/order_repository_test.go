package mysql

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func sampleRecord(id string, createdAt int64) *OrderRecord {
	return &OrderRecord{
		ID:                 id,
		IntentType:         "swap",
		SourceChainID:      1,
		DestinationChainID: 8453,
		InputToken:         "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE",
		InputAmount:        "1",
		OutputToken:        "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		MinOutputAmount:    "2970.000000",
		Recipient:          "0x1111111111111111111111111111111111111111",
		User:               "0x1111111111111111111111111111111111111111",
		Signature:          "0xabc",
		Status:             StatusQueued,
		CreatedAt:          createdAt,
		UpdatedAt:          createdAt,
	}
}

func TestMemoryOrderRepositoryCreateAndList(t *testing.T) {
	repo, err := NewMemoryOrderRepository(t.TempDir())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		record := sampleRecord(fmt.Sprintf("order-%d", i), int64(1700000000+i))
		if err := repo.Create(ctx, record); err != nil {
			t.Fatalf("create record: %v", err)
		}
	}

	records, err := repo.ListLatest(ctx, 2)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unexpected record count: %d", len(records))
	}
	// 最新的记录排在最前面。
	if records[0].ID != "order-2" || records[1].ID != "order-1" {
		t.Fatalf("unexpected ordering: %s %s", records[0].ID, records[1].ID)
	}
}

func TestMemoryOrderRepositoryUpdateStatus(t *testing.T) {
	repo, err := NewMemoryOrderRepository(t.TempDir())
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	ctx := context.Background()
	if err := repo.Create(ctx, sampleRecord("order-1", 1700000000)); err != nil {
		t.Fatalf("create record: %v", err)
	}

	if err := repo.UpdateStatus(ctx, "order-1", StatusDispatched); err != nil {
		t.Fatalf("update status: %v", err)
	}
	records, _ := repo.ListLatest(ctx, 1)
	if records[0].Status != StatusDispatched {
		t.Fatalf("unexpected status: %s", records[0].Status)
	}

	if err := repo.UpdateStatus(ctx, "missing", StatusDispatched); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestMemoryOrderRepositoryReloadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	repo, err := NewMemoryOrderRepository(dir)
	if err != nil {
		t.Fatalf("create repository: %v", err)
	}

	ctx := context.Background()
	if err := repo.Create(ctx, sampleRecord("order-1", 1700000000)); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := repo.Create(ctx, sampleRecord("order-2", 1700000001)); err != nil {
		t.Fatalf("create record: %v", err)
	}

	restored, err := NewMemoryOrderRepository(dir)
	if err != nil {
		t.Fatalf("reopen repository: %v", err)
	}
	records, err := restored.ListLatest(ctx, 0)
	if err != nil {
		t.Fatalf("list records: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("unexpected record count after reload: %d", len(records))
	}
	if records[0].ID != "order-2" {
		t.Fatalf("unexpected newest record: %s", records[0].ID)
	}
}
