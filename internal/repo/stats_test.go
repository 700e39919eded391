package repo

import (
	"context"
	"testing"
	"time"

	"github.com/tbourn/go-service-desk/internal/domain"
)

func TestLoadStats_CountsEverything(t *testing.T) {
	db := newRepoDB(t)
	ctx := context.Background()
	now := time.Now().UTC()

	_, _ = UpsertUser(ctx, db, domain.User{ID: 1}, now)
	_, _ = UpsertUser(ctx, db, domain.User{ID: 2}, now.Add(-48*time.Hour))
	_ = SetUserBlocked(ctx, db, 2, true)
	svc := seedService(t, db, "Docs", "Certificate")
	_, _ = CreateOrder(ctx, db, 1, svc.ID, "aaaa0001", "")
	_, _ = CreateOrder(ctx, db, 1, svc.ID, "aaaa0002", "")
	_, _ = CompleteOrder(ctx, db, "aaaa0002")
	p, _ := UpsertPost(ctx, db, 1, "t", "c", now)
	h, _ := UpsertHashtag(ctx, db, "x")
	_ = LinkHashtag(ctx, db, p.ID, h.ID)
	_, _ = ToggleSubscription(ctx, db, 1, h.ID)

	s, err := LoadStats(ctx, db, now.Add(-24*time.Hour))
	if err != nil {
		t.Fatalf("LoadStats: %v", err)
	}
	want := DeskStats{Users: 2, BlockedUsers: 1, ActiveUsers: 1, OrdersNew: 1, OrdersCompleted: 1, Posts: 1, Hashtags: 1, Subscriptions: 1}
	if s != want {
		t.Fatalf("stats = %+v; want %+v", s, want)
	}
}
