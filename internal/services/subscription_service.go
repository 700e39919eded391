package services

import (
	"context"

	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/content"
	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Subscription markers shown next to each tag.
const (
	MarkSubscribed   = "✅"
	MarkUnsubscribed = "❌"
)

// SubscriptionService toggles and lists user↔tag subscriptions.
type SubscriptionService struct {
	DB *gorm.DB
}

// Toggle flips the user's subscription to tag, creating the tag if it is new.
// It returns the resulting state and the refreshed keyboard.
func (s *SubscriptionService) Toggle(ctx context.Context, userID int64, tag string) (bool, *gateway.Keyboard, error) {
	tag = content.NormalizeTag(tag)
	ctx, span := otel.Tracer("services/SubscriptionService").Start(ctx, "Toggle",
		trace.WithAttributes(attribute.Int64("user.id", userID), attribute.String("tag", tag)),
	)
	defer span.End()

	if tag == "" {
		return false, nil, ErrEmptyTag
	}
	h, err := repo.UpsertHashtag(ctx, s.DB, tag)
	if err != nil {
		return false, nil, err
	}
	on, err := repo.ToggleSubscription(ctx, s.DB, userID, h.ID)
	if err != nil {
		return false, nil, err
	}
	kb, err := s.Keyboard(ctx, userID)
	if err != nil {
		return on, nil, err
	}
	return on, kb, nil
}

// Keyboard renders every known tag with the user's subscription marker.
// It returns a nil keyboard when no tags exist.
func (s *SubscriptionService) Keyboard(ctx context.Context, userID int64) (*gateway.Keyboard, error) {
	tags, err := repo.ListHashtags(ctx, s.DB)
	if err != nil {
		return nil, err
	}
	if len(tags) == 0 {
		return nil, nil
	}
	subscribed, err := repo.SubscribedHashtagIDs(ctx, s.DB, userID)
	if err != nil {
		return nil, err
	}
	kb := &gateway.Keyboard{}
	for _, h := range tags {
		mark := MarkUnsubscribed
		if _, ok := subscribed[h.ID]; ok {
			mark = MarkSubscribed
		}
		kb.Inline = append(kb.Inline, []gateway.Button{
			{Label: mark + " #" + h.Name, Action: domain.ToggleSubscriptionAction(h.Name)},
			{Label: "📰", Action: domain.TagPostsAction(h.Name)},
		})
	}
	return kb, nil
}
