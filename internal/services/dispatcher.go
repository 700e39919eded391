// Package services – Dispatcher
//
// Dispatcher is the single entry point for inbound user updates and channel
// posts. For user updates it registers the sender (refreshing last-seen),
// ignores blocked users, takes the per-user session lock and routes the
// update: commands and menu labels first, then the current session state,
// then callback actions.
//
// Validation problems re-prompt the user in the same state. Persistence
// failures answer with a generic failure text and are returned so the caller
// can log them.
package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
	"github.com/tbourn/go-service-desk/internal/session"
)

// Update sources used for redelivery de-duplication.
const (
	sourceUpdates      = "updates"
	sourceChannelPosts = "channel_posts"
)

// Dispatcher routes inbound events to the services.
type Dispatcher struct {
	DB       *gorm.DB
	Sessions *session.Store
	Gateway  gateway.Gateway

	Users         *UserService
	Workflow      *WorkflowService
	Relay         *RelayService
	Ingest        *IngestService
	Subscriptions *SubscriptionService
	Settings      *SettingsService
	Posts         *PostService
	Orders        *OrderService

	// DedupTTL is how long processed update ids are remembered; zero disables it.
	DedupTTL time.Duration
	Now      func() time.Time
}

// HandleUpdate processes one user event. Redelivered updates are skipped;
// an update whose handling fails is released so its redelivery runs again.
func (d *Dispatcher) HandleUpdate(ctx context.Context, upd gateway.Update) error {
	from := upd.Sender()
	if from == nil || from.ID <= 0 {
		return ErrMalformedUpdate
	}
	if upd.Callback != nil {
		a, err := domain.ParseAction(upd.Callback.Data)
		if err != nil {
			d.answer(ctx, upd.Callback.ID, "")
			return err
		}
		upd.Callback.Action = a
	}
	if fresh, err := d.markFresh(ctx, sourceUpdates, upd.ID); err != nil || !fresh {
		return err
	}
	err := d.handleUpdate(ctx, upd, *from)
	if err != nil {
		d.releaseMark(ctx, sourceUpdates, upd.ID)
	}
	return err
}

func (d *Dispatcher) handleUpdate(ctx context.Context, upd gateway.Update, from gateway.Sender) error {
	user, err := d.Users.Register(ctx, from)
	if err != nil {
		return err
	}
	log := zerolog.Ctx(ctx).With().Int64("user_id", user.ID).Logger()
	ctx = log.WithContext(ctx)

	if user.Blocked {
		if upd.Callback != nil {
			d.answer(ctx, upd.Callback.ID, textBlocked)
		} else {
			d.send(ctx, user.ID, textBlocked, nil)
		}
		return nil
	}

	unlock := d.Sessions.Lock(user.ID)
	defer unlock()

	if upd.Callback != nil {
		return d.handleCallback(ctx, user, upd.Callback)
	}
	return d.handleMessage(ctx, user, upd.Message)
}

// HandleChannelPost ingests one channel post. Redelivered updates are
// skipped; a failed ingestion is released so its redelivery runs again.
func (d *Dispatcher) HandleChannelPost(ctx context.Context, post gateway.ChannelPost) (*IngestResult, error) {
	if post.MessageID == 0 {
		return nil, ErrMalformedUpdate
	}
	if fresh, err := d.markFresh(ctx, sourceChannelPosts, post.UpdateID); err != nil || !fresh {
		return nil, err
	}
	res, err := d.Ingest.Ingest(ctx, post)
	if err != nil {
		d.releaseMark(ctx, sourceChannelPosts, post.UpdateID)
	}
	return res, err
}

func (d *Dispatcher) markFresh(ctx context.Context, source string, id int64) (bool, error) {
	if id == 0 || d.DedupTTL <= 0 {
		return true, nil
	}
	fresh, err := repo.MarkUpdate(ctx, d.DB, source, id, d.DedupTTL, d.now())
	if err == nil && !fresh {
		zerolog.Ctx(ctx).Debug().Str("source", source).Int64("update_id", id).Msg("duplicate update skipped")
	}
	return fresh, err
}

// releaseMark drops the processed marker after a failed attempt so the
// platform's retry is handled instead of skipped as a duplicate.
func (d *Dispatcher) releaseMark(ctx context.Context, source string, id int64) {
	if id == 0 || d.DedupTTL <= 0 {
		return
	}
	if err := repo.UnmarkUpdate(ctx, d.DB, source, id); err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("source", source).Int64("update_id", id).Msg("release processed marker")
	}
}

func (d *Dispatcher) handleMessage(ctx context.Context, user *domain.User, msg *gateway.Message) error {
	chatID := msg.ChatID
	if chatID == 0 {
		chatID = user.ID
	}
	text := strings.TrimSpace(msg.Text)

	if msg.Kind == gateway.KindText || msg.Kind == "" {
		switch text {
		case CommandStart:
			d.Sessions.Delete(user.ID)
			d.send(ctx, chatID, textWelcome, MainMenu())
			return nil
		case CommandCancel:
			d.Workflow.Cancel(ctx, user.ID, chatID)
			return nil
		case MenuServices, MenuTrack, MenuMyOrders, MenuSearch, MenuSubscriptions, MenuSettings:
			return d.fail(ctx, chatID, d.handleMenu(ctx, user, chatID, text))
		}
	}

	sess, ok := d.Sessions.Get(user.ID)
	if !ok {
		d.send(ctx, chatID, textUseMenu, MainMenu())
		return nil
	}
	switch sess.State {
	case session.StateCollectingDocuments:
		d.Workflow.CollectDocument(ctx, user.ID, msg)
		return nil
	case session.StateAwaitingKeyword:
		return d.fail(ctx, chatID, d.search(ctx, user.ID, chatID, text))
	case session.StateAwaitingPostLimit:
		return d.fail(ctx, chatID, d.setPostLimit(ctx, user.ID, chatID, text))
	case session.StateAwaitingTrackingCode:
		return d.fail(ctx, chatID, d.track(ctx, user.ID, chatID, text))
	}
	d.send(ctx, chatID, textUseMenu, MainMenu())
	return nil
}

// handleMenu starts a new flow from a reply-menu label, replacing any session.
func (d *Dispatcher) handleMenu(ctx context.Context, user *domain.User, chatID int64, label string) error {
	d.Sessions.Delete(user.ID)
	switch label {
	case MenuServices:
		return d.Workflow.ShowCategories(ctx, chatID)
	case MenuTrack:
		d.prompt(ctx, user.ID, chatID, session.StateAwaitingTrackingCode, textTrackPrompt)
	case MenuSearch:
		d.prompt(ctx, user.ID, chatID, session.StateAwaitingKeyword, textSearchPrompt)
	case MenuMyOrders:
		list, err := d.Orders.Recent(ctx, user.ID)
		if err != nil {
			return err
		}
		if len(list) == 0 {
			d.send(ctx, chatID, textNoOrders, MainMenu())
			return nil
		}
		d.send(ctx, chatID, ordersText(list), MainMenu())
	case MenuSubscriptions:
		kb, err := d.Subscriptions.Keyboard(ctx, user.ID)
		if err != nil {
			return err
		}
		if kb == nil {
			d.send(ctx, chatID, textNoHashtags, nil)
			return nil
		}
		d.send(ctx, chatID, textSubscriptions, kb)
	case MenuSettings:
		st, err := d.Settings.Get(ctx, user.ID)
		if err != nil {
			return err
		}
		d.send(ctx, chatID, settingsText(st), settingsKeyboard(st))
	}
	return nil
}

func (d *Dispatcher) handleCallback(ctx context.Context, user *domain.User, cb *gateway.Callback) error {
	chatID := cb.ChatID
	if chatID == 0 {
		chatID = user.ID
	}
	a := cb.Action
	var err error
	toast := ""

	switch a.Kind {
	case domain.ActionCategories:
		err = d.Workflow.ShowCategories(ctx, chatID)
	case domain.ActionCategory:
		err = d.Workflow.ChooseCategory(ctx, user.ID, chatID, uint(a.ID))
		if errors.Is(err, ErrCategoryNotFound) {
			toast, err = textNoServices, nil
		}
	case domain.ActionService:
		err = d.Workflow.ChooseService(ctx, user.ID, chatID, uint(a.ID))
		if errors.Is(err, ErrServiceNotFound) {
			toast, err = textNoServices, nil
		}
	case domain.ActionSubmit:
		_, err = d.Workflow.Submit(ctx, user, chatID)
		if errors.Is(err, ErrNoActiveRequest) {
			toast, err = textNoActiveRequest, nil
		}
	case domain.ActionCancel:
		d.Workflow.Cancel(ctx, user.ID, chatID)
	case domain.ActionMainMenu:
		d.Sessions.Delete(user.ID)
		d.send(ctx, chatID, textWelcome, MainMenu())
	case domain.ActionComplete:
		toast, err = d.complete(ctx, user.ID, chatID, a.Arg)
	case domain.ActionFullPost:
		err = d.fullPost(ctx, chatID, uint(a.ID))
	case domain.ActionTagPosts:
		err = d.tagPosts(ctx, user.ID, chatID, a.Arg)
	case domain.ActionToggleSubscription:
		var on bool
		var kb *gateway.Keyboard
		on, kb, err = d.Subscriptions.Toggle(ctx, user.ID, a.Arg)
		if err == nil {
			toast = MarkUnsubscribed + " #" + a.Arg
			if on {
				toast = MarkSubscribed + " #" + a.Arg
			}
			d.edit(ctx, chatID, cb.MessageID, textSubscriptions, kb)
		}
		if errors.Is(err, ErrEmptyTag) {
			err = nil
		}
	case domain.ActionSetPostLimit:
		d.prompt(ctx, user.ID, chatID, session.StateAwaitingPostLimit, fmt.Sprintf(textLimitPrompt, d.Settings.MaxPostLimit))
	case domain.ActionNotificationsOn, domain.ActionNotificationsOff:
		var st domain.UserSettings
		st, err = d.Settings.SetNotifications(ctx, user.ID, a.Kind == domain.ActionNotificationsOn)
		if err == nil {
			d.edit(ctx, chatID, cb.MessageID, settingsText(st), settingsKeyboard(st))
		}
	}

	if err != nil {
		toast = textFailure
	}
	d.answer(ctx, cb.ID, toast)
	return d.fail(ctx, chatID, err)
}

func (d *Dispatcher) complete(ctx context.Context, operatorID, chatID int64, code string) (string, error) {
	o, err := d.Relay.Complete(ctx, operatorID, code)
	switch {
	case errors.Is(err, ErrNotOperator):
		return textOperatorOnly, nil
	case errors.Is(err, ErrOrderNotFound):
		d.send(ctx, chatID, fmt.Sprintf("❓ Order %s not found.", code), nil)
		return textOrderNotFound, nil
	case err != nil:
		return "", err
	}
	d.send(ctx, chatID, fmt.Sprintf("✔️ Order %s marked as completed.", o.Code), nil)
	return "", nil
}

func (d *Dispatcher) fullPost(ctx context.Context, chatID int64, postID uint) error {
	p, tags, err := d.Posts.Full(ctx, postID)
	if errors.Is(err, ErrPostNotFound) {
		d.send(ctx, chatID, textPostGone, nil)
		return nil
	}
	if err != nil {
		return err
	}
	d.send(ctx, chatID, fullPostText(p, tags), nil)
	return nil
}

func (d *Dispatcher) tagPosts(ctx context.Context, userID, chatID int64, tag string) error {
	posts, err := d.Posts.ByTag(ctx, userID, tag)
	if errors.Is(err, ErrEmptyTag) {
		return nil
	}
	if err != nil {
		return err
	}
	if len(posts) == 0 {
		d.send(ctx, chatID, textNothingFound, nil)
		return nil
	}
	d.send(ctx, chatID, postListText("#"+tag, posts), postListKeyboard(posts))
	return nil
}

func (d *Dispatcher) search(ctx context.Context, userID, chatID int64, keyword string) error {
	posts, err := d.Posts.Search(ctx, userID, keyword)
	if errors.Is(err, ErrEmptyKeyword) {
		d.send(ctx, chatID, textEmptyKeyword, nil)
		return nil
	}
	if err != nil {
		return err
	}
	d.Sessions.Delete(userID)
	if len(posts) == 0 {
		d.send(ctx, chatID, textNothingFound, MainMenu())
		return nil
	}
	d.send(ctx, chatID, postListText("🔍 "+keyword, posts), postListKeyboard(posts))
	return nil
}

func (d *Dispatcher) setPostLimit(ctx context.Context, userID, chatID int64, raw string) error {
	n, err := d.Settings.SetPostLimit(ctx, userID, raw)
	switch {
	case errors.Is(err, ErrNotANumber):
		d.send(ctx, chatID, textLimitNotNumber, nil)
		return nil
	case errors.Is(err, ErrLimitOutOfRange):
		d.send(ctx, chatID, fmt.Sprintf(textLimitRange, d.Settings.MaxPostLimit), nil)
		return nil
	case err != nil:
		return err
	}
	d.Sessions.Delete(userID)
	d.send(ctx, chatID, fmt.Sprintf(textLimitSaved, n), MainMenu())
	return nil
}

func (d *Dispatcher) track(ctx context.Context, userID, chatID int64, code string) error {
	v, err := d.Orders.Track(ctx, userID, code)
	if errors.Is(err, ErrOrderNotFound) {
		d.Sessions.Delete(userID)
		d.send(ctx, chatID, textOrderNotFound, MainMenu())
		return nil
	}
	if err != nil {
		return err
	}
	d.Sessions.Delete(userID)
	d.send(ctx, chatID, trackText(v), MainMenu())
	return nil
}

// prompt moves the user into a single-input state and asks for the input.
func (d *Dispatcher) prompt(ctx context.Context, userID, chatID int64, st session.State, text string) {
	d.Sessions.Put(&session.Session{UserID: userID, State: st})
	d.send(ctx, chatID, text, nil)
}

// fail reports a persistence failure to the user and passes err through.
func (d *Dispatcher) fail(ctx context.Context, chatID int64, err error) error {
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("update handling failed")
		d.send(ctx, chatID, textFailure, nil)
	}
	return err
}

func (d *Dispatcher) send(ctx context.Context, chatID int64, text string, kb *gateway.Keyboard) {
	if _, err := d.Gateway.SendMessage(ctx, chatID, text, kb); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("send failed")
	}
}

func (d *Dispatcher) edit(ctx context.Context, chatID, messageID int64, text string, kb *gateway.Keyboard) {
	if messageID == 0 {
		d.send(ctx, chatID, text, kb)
		return
	}
	if err := d.Gateway.EditMessage(ctx, chatID, messageID, text, kb); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Int64("chat_id", chatID).Msg("edit failed")
	}
}

func (d *Dispatcher) answer(ctx context.Context, callbackID, text string) {
	if callbackID == "" {
		return
	}
	if err := d.Gateway.AnswerCallback(ctx, callbackID, text); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("callback_id", callbackID).Msg("answer callback failed")
	}
}

func (d *Dispatcher) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}
