package handlers

import (
	"context"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/services"
)

// Dispatcher consumes inbound platform events.
type Dispatcher interface {
	HandleUpdate(ctx context.Context, upd gateway.Update) error
	HandleChannelPost(ctx context.Context, post gateway.ChannelPost) (*services.IngestResult, error)
}

// OrderService looks orders up by tracking code.
type OrderService interface {
	Get(ctx context.Context, code string) (*repo.OrderView, error)
}

// Completer marks orders as completed on behalf of an operator.
type Completer interface {
	Complete(ctx context.Context, operatorID int64, code string) (*domain.Order, error)
}

// PostSearcher searches stored post titles.
type PostSearcher interface {
	SearchLimit(ctx context.Context, keyword string, limit int) ([]domain.Post, error)
}

// UserAdmin moderates users and reports desk statistics.
type UserAdmin interface {
	Block(ctx context.Context, id int64) error
	Unblock(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (repo.DeskStats, error)
}

// Handlers groups the webhook and operator endpoints.
type Handlers struct {
	dispatcher Dispatcher
	orders     OrderService
	completer  Completer
	posts      PostSearcher
	users      UserAdmin

	maxPostLimit int
}

// Deps are the services Handlers depends on.
type Deps struct {
	Dispatcher   Dispatcher
	Orders       OrderService
	Completer    Completer
	Posts        PostSearcher
	Users        UserAdmin
	MaxPostLimit int
}

// New binds handlers to their services.
func New(d Deps) *Handlers {
	return &Handlers{
		dispatcher:   d.Dispatcher,
		orders:       d.Orders,
		completer:    d.Completer,
		posts:        d.Posts,
		users:        d.Users,
		maxPostLimit: d.MaxPostLimit,
	}
}
