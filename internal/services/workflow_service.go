// Package services – WorkflowService
//
// This file implements the per-user request workflow: choosing a category,
// choosing a service, collecting supporting material, and submitting the
// order. Session state lives in session.Store; callers must hold the user's
// session lock (Store.Lock) while invoking these methods.
//
// Persistence failures are returned to the caller and leave the session where
// it was. Delivery failures are logged and never abort a step.
package services

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/session"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// SubmitResult is the outcome of a successful submission.
type SubmitResult struct {
	Order  *domain.Order
	Report DeliveryReport
}

// WorkflowService drives the category → service → documents → submit flow.
type WorkflowService struct {
	DB       *gorm.DB
	Sessions *session.Store
	Gateway  gateway.Gateway
	Relay    *RelayService

	// CodeAttempts bounds generate-and-insert retries on code collisions.
	CodeAttempts int
	// NewCode generates a tracking code; defaults to the first 8 characters of a UUIDv4.
	NewCode func() string
}

// NewWorkflowService constructs a WorkflowService with default code generation.
func NewWorkflowService(db *gorm.DB, st *session.Store, gw gateway.Gateway, relay *RelayService, attempts int) *WorkflowService {
	return &WorkflowService{
		DB:           db,
		Sessions:     st,
		Gateway:      gw,
		Relay:        relay,
		CodeAttempts: attempts,
		NewCode:      newTrackingCode,
	}
}

func newTrackingCode() string { return uuid.NewString()[:8] }

// ShowCategories lists the catalog categories.
func (s *WorkflowService) ShowCategories(ctx context.Context, chatID int64) error {
	cats, err := repo.ListCategories(ctx, s.DB)
	if err != nil {
		return err
	}
	if len(cats) == 0 {
		s.send(ctx, chatID, textNoCategories, MainMenu())
		return nil
	}
	s.send(ctx, chatID, textChooseCategory, categoriesKeyboard(cats))
	return nil
}

// ChooseCategory lists the services of a category and records the selection.
// An empty category answers "no services" and leaves the session untouched.
func (s *WorkflowService) ChooseCategory(ctx context.Context, userID, chatID int64, categoryID uint) error {
	ctx, span := otel.Tracer("services/WorkflowService").Start(ctx, "ChooseCategory",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("category.id", int(categoryID)),
		),
	)
	defer span.End()

	cat, err := repo.GetCategory(ctx, s.DB, categoryID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrCategoryNotFound
	}
	if err != nil {
		return err
	}
	svcs, err := repo.ListServicesByCategory(ctx, s.DB, cat.ID)
	if err != nil {
		return err
	}
	if len(svcs) == 0 {
		s.send(ctx, chatID, textNoServices, nil)
		return nil
	}
	s.Sessions.Put(&session.Session{
		UserID:     userID,
		State:      session.StateCategorySelected,
		CategoryID: cat.ID,
	})
	s.send(ctx, chatID, "📂 "+cat.Name, servicesKeyboard(svcs))
	return nil
}

// ChooseService starts document collection for a service, replacing any
// previous session with empty draft and reference lists.
func (s *WorkflowService) ChooseService(ctx context.Context, userID, chatID int64, serviceID uint) error {
	ctx, span := otel.Tracer("services/WorkflowService").Start(ctx, "ChooseService",
		trace.WithAttributes(
			attribute.Int64("user.id", userID),
			attribute.Int("service.id", int(serviceID)),
		),
	)
	defer span.End()

	svc, err := repo.GetService(ctx, s.DB, serviceID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrServiceNotFound
	}
	if err != nil {
		return err
	}
	s.Sessions.Put(&session.Session{
		UserID:       userID,
		State:        session.StateCollectingDocuments,
		CategoryID:   svc.CategoryID,
		ServiceID:    svc.ID,
		ServiceTitle: svc.Title,
		Drafts:       []string{},
		Refs:         []session.MessageRef{},
	})
	s.send(ctx, chatID, serviceIntroText(svc), collectKeyboard())
	return nil
}

// CollectDocument appends a summary of msg and its reference to the live
// session. It reports false when the user is not collecting documents.
func (s *WorkflowService) CollectDocument(ctx context.Context, userID int64, msg *gateway.Message) bool {
	sess, ok := s.Sessions.Get(userID)
	if !ok || sess.State != session.StateCollectingDocuments {
		return false
	}
	chatID := msg.ChatID
	if chatID == 0 {
		chatID = userID
	}
	sess.Drafts = append(sess.Drafts, DraftSummary(msg))
	sess.Refs = append(sess.Refs, session.MessageRef{ChatID: chatID, MessageID: msg.ID})
	s.Sessions.Put(sess)
	s.send(ctx, chatID, textDocumentReceived, collectKeyboard())
	return true
}

// DraftSummary renders one collected message as draft text.
func DraftSummary(msg *gateway.Message) string {
	switch msg.Kind {
	case gateway.KindPhoto:
		return DraftPhoto
	case gateway.KindDocument:
		name := strings.TrimSpace(msg.FileName)
		if name == "" {
			name = "Document"
		}
		return DraftDocument + name
	case gateway.KindText, "":
		if t := strings.TrimSpace(msg.Text); t != "" {
			return t
		}
	}
	return DraftAttachment
}

// JoinDrafts concatenates drafts, or returns the explicit empty marker.
func JoinDrafts(drafts []string) string {
	if len(drafts) == 0 {
		return NoDocuments
	}
	return strings.Join(drafts, "\n")
}

// Submit persists the order for the live session, confirms it to the user,
// hands it to the operator relay and destroys the session. Without a
// collecting session it returns ErrNoActiveRequest and creates nothing.
func (s *WorkflowService) Submit(ctx context.Context, user *domain.User, chatID int64) (*SubmitResult, error) {
	ctx, span := otel.Tracer("services/WorkflowService").Start(ctx, "Submit",
		trace.WithAttributes(attribute.Int64("user.id", user.ID)),
	)
	defer span.End()

	sess, ok := s.Sessions.Get(user.ID)
	if !ok || sess.State != session.StateCollectingDocuments {
		return nil, ErrNoActiveRequest
	}
	sess.State = session.StateSubmitting
	s.Sessions.Put(sess)

	order, err := s.createOrder(ctx, user.ID, sess.ServiceID, JoinDrafts(sess.Drafts))
	if err != nil {
		// Let the user retry from the same point.
		sess.State = session.StateCollectingDocuments
		s.Sessions.Put(sess)
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("order.code", order.Code))

	s.send(ctx, chatID, submittedText(order.Code), MainMenu())

	var report DeliveryReport
	if s.Relay != nil {
		report = s.Relay.NotifySubmission(ctx, Submission{
			User:         user,
			ServiceTitle: sess.ServiceTitle,
			Code:         order.Code,
			Refs:         sess.Refs,
		})
	}
	s.Sessions.Delete(user.ID)
	return &SubmitResult{Order: order, Report: report}, nil
}

// createOrder inserts the order, regenerating the code on unique collisions.
func (s *WorkflowService) createOrder(ctx context.Context, userID int64, serviceID uint, docs string) (*domain.Order, error) {
	attempts := s.CodeAttempts
	if attempts < 1 {
		attempts = 1
	}
	gen := s.NewCode
	if gen == nil {
		gen = newTrackingCode
	}
	for i := 0; i < attempts; i++ {
		code := gen()
		o, err := repo.CreateOrder(ctx, s.DB, userID, serviceID, code, docs)
		if errors.Is(err, repo.ErrDuplicate) {
			zerolog.Ctx(ctx).Warn().Str("order_code", code).Int("attempt", i+1).Msg("tracking code collision")
			continue
		}
		return o, err
	}
	return nil, ErrTrackingCodeExhausted
}

// Cancel destroys any session and returns the user to the main menu.
func (s *WorkflowService) Cancel(ctx context.Context, userID, chatID int64) {
	s.Sessions.Delete(userID)
	s.send(ctx, chatID, textCancelled, MainMenu())
}

func (s *WorkflowService) send(ctx context.Context, chatID int64, text string, kb *gateway.Keyboard) {
	if _, err := s.Gateway.SendMessage(ctx, chatID, text, kb); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}
