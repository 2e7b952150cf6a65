package repo

import (
	"context"
	"testing"
	"time"

	"gorm.io/datatypes"

	"github.com/tbourn/go-spend-reconciler/internal/domain"
)

func TestDeadLetters_AppendAndList(t *testing.T) {
	db := newTestDB(t, &domain.DeadLetter{})
	ctx := context.Background()
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	for i, q := range []string{"cost-collection", "inventory-scan", "cost-collection"} {
		dl := &domain.DeadLetter{Queue: q, JobID: "j", Reason: "boom", Attempts: 3,
			Payload: datatypes.JSON(`{"accountId":"a"}`), FailedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := CreateDeadLetter(ctx, db, dl); err != nil {
			t.Fatalf("create: %v", err)
		}
		if dl.ID == "" {
			t.Fatalf("id not assigned")
		}
	}

	all, err := ListDeadLetters(ctx, db, "", 0)
	if err != nil || len(all) != 3 {
		t.Fatalf("list all: n=%d err=%v", len(all), err)
	}
	if !all[0].FailedAt.After(all[2].FailedAt) {
		t.Fatalf("expected newest first: %v .. %v", all[0].FailedAt, all[2].FailedAt)
	}
	cost, _ := ListDeadLetters(ctx, db, "cost-collection", 1)
	if len(cost) != 1 || cost[0].Queue != "cost-collection" {
		t.Fatalf("filter/limit: %+v", cost)
	}
}

func TestReplaceSchedules(t *testing.T) {
	db := newTestDB(t, &domain.Schedule{})
	ctx := context.Background()

	if err := ReplaceSchedules(ctx, db, []domain.Schedule{
		{Name: "old", Queue: "meta-scheduler", Spec: "@hourly"},
	}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := ReplaceSchedules(ctx, db, []domain.Schedule{
		{Name: "meta-schedule-trigger", Queue: "meta-scheduler", Spec: "0 0 * * *"},
	}); err != nil {
		t.Fatalf("replace: %v", err)
	}
	got, err := ListSchedules(ctx, db)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 || got[0].Name != "meta-schedule-trigger" {
		t.Fatalf("stale schedules left: %+v", got)
	}
}
