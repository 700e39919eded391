package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/session"
)

const (
	operatorA int64 = 900
	operatorB int64 = 901
)

// ----- Fixtures -----

type tick struct {
	mu sync.Mutex
	t  time.Time
}

// now advances one second per call so stored rows get distinct timestamps.
func (c *tick) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(time.Second)
	return c.t
}

type sinkSpy struct {
	mu      sync.Mutex
	reports []DeliveryReport
}

func (s *sinkSpy) Record(_ context.Context, r DeliveryReport) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports = append(s.reports, r)
}

type desk struct {
	db    *gorm.DB
	gw    *gateway.Recorder
	store *session.Store
	sink  *sinkSpy
	clock *tick
	d     *Dispatcher
	seq   int64
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), fmt.Sprintf("svc_test_%d.db", time.Now().UnixNano()))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	db.Exec("PRAGMA foreign_keys=ON;")
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(1)
	}
	if err := repo.AutoMigrate(db); err != nil {
		t.Fatalf("automigrate: %v", err)
	}
	return db
}

func newDesk(t *testing.T, retention int) *desk {
	t.Helper()
	db := newTestDB(t)
	gw := gateway.NewRecorder()
	clock := &tick{t: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
	store := session.New(30*time.Minute, clock.now)
	sink := &sinkSpy{}

	d := NewDispatcher(db, store, gw, Options{
		Operators:        []int64{operatorA, operatorB},
		Sink:             sink,
		CodeAttempts:     3,
		DedupTTL:         time.Hour,
		Retention:        retention,
		TitleMaxRunes:    150,
		PreviewMaxRunes:  200,
		DefaultPostLimit: 5,
		MaxPostLimit:     50,
		Now:              clock.now,
	})
	return &desk{db: db, gw: gw, store: store, sink: sink, clock: clock, d: d}
}

func (k *desk) nextID() int64 {
	k.seq++
	return k.seq
}

func (k *desk) seedService(t *testing.T, category, title string, docs ...string) (*domain.Category, *domain.Service) {
	t.Helper()
	ctx := context.Background()
	cat, err := repo.EnsureCategory(ctx, k.db, category)
	if err != nil {
		t.Fatalf("EnsureCategory: %v", err)
	}
	svc, err := repo.EnsureService(ctx, k.db, cat.ID, title, docs)
	if err != nil {
		t.Fatalf("EnsureService: %v", err)
	}
	return cat, svc
}

// text sends a text message from userID and returns its message id.
func (k *desk) text(t *testing.T, userID int64, text string) int64 {
	t.Helper()
	return k.message(t, &gateway.Message{From: gateway.Sender{ID: userID, FirstName: "U"}, Kind: gateway.KindText, Text: text})
}

func (k *desk) message(t *testing.T, msg *gateway.Message) int64 {
	t.Helper()
	msg.ID = k.nextID()
	if err := k.d.HandleUpdate(context.Background(), gateway.Update{ID: k.nextID(), Message: msg}); err != nil {
		t.Fatalf("HandleUpdate(message %q): %v", msg.Text, err)
	}
	return msg.ID
}

// press simulates a button press by userID.
func (k *desk) press(t *testing.T, userID int64, a domain.Action) {
	t.Helper()
	if err := k.pressErr(userID, a); err != nil {
		t.Fatalf("HandleUpdate(callback %s): %v", a, err)
	}
}

func (k *desk) pressErr(userID int64, a domain.Action) error {
	cb := &gateway.Callback{
		ID:        fmt.Sprintf("cb%d", k.nextID()),
		From:      gateway.Sender{ID: userID, FirstName: "U"},
		MessageID: 1,
		Data:      a.Encode(),
	}
	return k.d.HandleUpdate(context.Background(), gateway.Update{ID: k.nextID(), Callback: cb})
}

func (k *desk) post(t *testing.T, sourceID int64, text string) *IngestResult {
	t.Helper()
	res, err := k.d.HandleChannelPost(context.Background(), gateway.ChannelPost{UpdateID: k.nextID(), MessageID: sourceID, Text: text})
	if err != nil {
		t.Fatalf("HandleChannelPost(%d): %v", sourceID, err)
	}
	return res
}

func (k *desk) state(userID int64) session.State {
	s, ok := k.store.Get(userID)
	if !ok {
		return session.StateIdle
	}
	return s.State
}

func (k *desk) orders(t *testing.T, userID int64) []repo.OrderView {
	t.Helper()
	list, err := repo.ListUserOrders(context.Background(), k.db, userID, 100)
	if err != nil {
		t.Fatalf("ListUserOrders: %v", err)
	}
	return list
}

// trackingCode extracts the code from the submission confirmation.
func trackingCode(t *testing.T, gw *gateway.Recorder, userID int64) string {
	t.Helper()
	for _, s := range gw.SentTo(userID) {
		if i := strings.Index(s.Text, "Tracking code: "); i >= 0 {
			rest := s.Text[i+len("Tracking code: "):]
			return strings.Fields(rest)[0]
		}
	}
	t.Fatalf("no tracking code sent to %d", userID)
	return ""
}
