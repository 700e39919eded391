package services

import (
	"time"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/session"
)

// Options configures NewDispatcher.
type Options struct {
	Operators    []int64
	Sink         DeliverySink
	CodeAttempts int
	DedupTTL     time.Duration

	Retention        int
	TitleMaxRunes    int
	PreviewMaxRunes  int
	DefaultPostLimit int
	MaxPostLimit     int

	// Now defaults to time.Now.
	Now func() time.Time
}

// NewDispatcher builds every service over one store, session table and
// gateway and returns the dispatcher that routes to them.
func NewDispatcher(db *gorm.DB, st *session.Store, gw gateway.Gateway, o Options) *Dispatcher {
	now := o.Now
	if now == nil {
		now = time.Now
	}
	relay := &RelayService{DB: db, Gateway: gw, Operators: o.Operators, Sink: o.Sink}
	settings := &SettingsService{
		DB:           db,
		Defaults:     domain.UserSettings{PostLimit: o.DefaultPostLimit, NotificationsEnabled: true},
		MaxPostLimit: o.MaxPostLimit,
	}
	return &Dispatcher{
		DB:       db,
		Sessions: st,
		Gateway:  gw,
		Users:    &UserService{DB: db, Sessions: st, Now: now},
		Workflow: NewWorkflowService(db, st, gw, relay, o.CodeAttempts),
		Relay:    relay,
		Ingest: &IngestService{
			DB:              db,
			Gateway:         gw,
			Sink:            o.Sink,
			Retention:       o.Retention,
			TitleMaxRunes:   o.TitleMaxRunes,
			PreviewMaxRunes: o.PreviewMaxRunes,
			Now:             now,
		},
		Subscriptions: &SubscriptionService{DB: db},
		Settings:      settings,
		Posts:         &PostService{DB: db, Settings: settings},
		Orders:        &OrderService{DB: db},
		DedupTTL:      o.DedupTTL,
		Now:           now,
	}
}
