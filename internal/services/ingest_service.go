// Package services – IngestService
//
// IngestService stores channel posts and fans them out to subscribers.
// Storage (post upsert, tag links, retention eviction) runs in one
// transaction; fan-out runs after commit, sequentially, one attempt per
// recipient, with every outcome collected in a DeliveryReport.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/content"
	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// IngestResult describes what one ingestion did.
type IngestResult struct {
	Post    *domain.Post
	Tags    []string
	Evicted []uint
	Report  DeliveryReport
}

// IngestService implements channel-post ingestion and fan-out.
type IngestService struct {
	DB      *gorm.DB
	Gateway gateway.Gateway
	Sink    DeliverySink

	Retention       int
	TitleMaxRunes   int
	PreviewMaxRunes int

	Now func() time.Time
}

// Ingest upserts the post keyed by its source message id, links its tags,
// enforces the retention cap and notifies subscribers of its tags.
func (s *IngestService) Ingest(ctx context.Context, in gateway.ChannelPost) (*IngestResult, error) {
	ctx, span := otel.Tracer("services/IngestService").Start(ctx, "Ingest",
		trace.WithAttributes(attribute.Int64("post.source_id", in.MessageID)),
	)
	defer span.End()

	body := content.Body(in.Text, in.Caption)
	title := content.DeriveTitle(body, s.TitleMaxRunes)
	tags := content.ExtractHashtags(body)

	res := &IngestResult{Tags: tags}
	var tagIDs []uint
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := repo.UpsertPost(ctx, tx, in.MessageID, title, body, s.now())
		if err != nil {
			return err
		}
		res.Post = p
		for _, name := range tags {
			h, err := repo.UpsertHashtag(ctx, tx, name)
			if err != nil {
				return err
			}
			if err := repo.LinkHashtag(ctx, tx, p.ID, h.ID); err != nil {
				return err
			}
			tagIDs = append(tagIDs, h.ID)
		}
		evicted, err := repo.EvictOldestPosts(ctx, tx, s.Retention)
		if err != nil {
			return err
		}
		res.Evicted = evicted
		return nil
	})
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("post.id", int(res.Post.ID)),
		attribute.Int("tags", len(tags)),
		attribute.Int("evicted", len(res.Evicted)),
	)

	for _, id := range res.Evicted {
		if id == res.Post.ID {
			// Nothing to point subscribers at.
			return res, nil
		}
	}
	report, err := s.fanOut(ctx, res.Post, tagIDs)
	if err != nil {
		return res, err
	}
	res.Report = report
	return res, nil
}

// fanOut sends a preview to every notifiable subscriber of tagIDs. A user
// following several of the tags is notified once.
func (s *IngestService) fanOut(ctx context.Context, p *domain.Post, tagIDs []uint) (DeliveryReport, error) {
	report := DeliveryReport{Kind: DeliveryFanout, Subject: fmt.Sprint(p.ID)}
	recipients, err := repo.ListNotifiableSubscribers(ctx, s.DB, tagIDs)
	if err != nil {
		return report, err
	}
	text := fmt.Sprintf("📰 %s\n\n%s", p.Title, content.Preview(p.Content, s.PreviewMaxRunes))
	kb := fullPostKeyboard(p.ID)
	for _, uid := range recipients {
		_, err := s.Gateway.SendMessage(ctx, uid, text, kb)
		report.add(uid, 0, err)
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Int64("user_id", uid).Uint("post_id", p.ID).Msg("fan-out delivery failed")
		}
	}
	sinkOrNop(s.Sink).Record(ctx, report)
	return report, nil
}

func (s *IngestService) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}
