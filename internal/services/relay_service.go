// Package services – RelayService
//
// RelayService connects submitted orders with the configured operators. A
// submission produces one notification per operator followed by forwards of
// every collected message in arrival order. Each send is attempted once;
// failures are logged, collected in a DeliveryReport and never abort the
// remaining sends.
package services

import (
	"context"
	"errors"

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

// Submission is what the relay needs to announce a new order.
type Submission struct {
	User         *domain.User
	ServiceTitle string
	Code         string
	Refs         []session.MessageRef
}

// RelayService notifies operators and resolves orders on their behalf.
type RelayService struct {
	DB        *gorm.DB
	Gateway   gateway.Gateway
	Operators []int64
	Sink      DeliverySink
}

// IsOperator reports whether id may complete orders.
func (s *RelayService) IsOperator(id int64) bool {
	for _, op := range s.Operators {
		if op == id {
			return true
		}
	}
	return false
}

// NotifySubmission announces sub to every operator and forwards its messages.
func (s *RelayService) NotifySubmission(ctx context.Context, sub Submission) DeliveryReport {
	ctx, span := otel.Tracer("services/RelayService").Start(ctx, "NotifySubmission",
		trace.WithAttributes(
			attribute.String("order.code", sub.Code),
			attribute.Int("refs", len(sub.Refs)),
			attribute.Int("operators", len(s.Operators)),
		),
	)
	defer span.End()

	report := DeliveryReport{Kind: DeliveryRelay, Subject: sub.Code}
	log := zerolog.Ctx(ctx)
	text := operatorNotificationText(sub.User, sub.ServiceTitle, sub.Code)

	for _, op := range s.Operators {
		_, err := s.Gateway.SendMessage(ctx, op, text, completeKeyboard(sub.Code))
		report.add(op, 0, err)
		if err != nil {
			log.Warn().Err(err).Int64("operator_id", op).Str("order_code", sub.Code).Msg("operator notification failed")
		}
		for _, ref := range sub.Refs {
			err := s.Gateway.ForwardMessage(ctx, op, ref.ChatID, ref.MessageID)
			report.add(op, ref.MessageID, err)
			if err != nil {
				log.Warn().Err(err).
					Int64("operator_id", op).
					Int64("message_id", ref.MessageID).
					Str("order_code", sub.Code).
					Msg("forward to operator failed")
			}
		}
	}

	span.SetAttributes(attribute.Int("delivered", report.Delivered()), attribute.Int("failed", len(report.Failed())))
	sinkOrNop(s.Sink).Record(ctx, report)
	return report
}

// Complete marks the order with code as completed, scrubs its documents and
// tells the requester. Unknown codes yield ErrOrderNotFound with no changes.
func (s *RelayService) Complete(ctx context.Context, operatorID int64, code string) (*domain.Order, error) {
	ctx, span := otel.Tracer("services/RelayService").Start(ctx, "Complete",
		trace.WithAttributes(
			attribute.Int64("operator.id", operatorID),
			attribute.String("order.code", code),
		),
	)
	defer span.End()

	if !s.IsOperator(operatorID) {
		return nil, ErrNotOperator
	}
	o, err := repo.CompleteOrder(ctx, s.DB, code)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrOrderNotFound
	}
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if _, err := s.Gateway.SendMessage(ctx, o.UserID, completedText(o.Code), nil); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", o.UserID).Str("order_code", o.Code).Msg("completion notice failed")
	}
	return o, nil
}
