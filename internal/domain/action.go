package domain

import (
	"errors"
	"strconv"
	"strings"
)

// ErrUnknownAction is returned by ParseAction for tokens it cannot decode.
var ErrUnknownAction = errors.New("unknown action")

// ActionKind enumerates the inline-keyboard actions the desk understands.
type ActionKind int

const (
	ActionUnknown ActionKind = iota
	ActionCategory
	ActionService
	ActionSubmit
	ActionCancel
	ActionComplete
	ActionFullPost
	ActionTagPosts
	ActionToggleSubscription
	ActionSetPostLimit
	ActionNotificationsOn
	ActionNotificationsOff
	ActionCategories
	ActionMainMenu
)

// Action is the decoded form of an opaque callback token. Only the field that
// belongs to Kind is meaningful: ID for category/service/post, Arg for order
// codes and tag names.
type Action struct {
	Kind ActionKind
	ID   int64
	Arg  string
}

var (
	bareVerbs = map[string]ActionKind{
		"submit":     ActionSubmit,
		"cancel":     ActionCancel,
		"set_limit":  ActionSetPostLimit,
		"notify_on":  ActionNotificationsOn,
		"notify_off": ActionNotificationsOff,
		"categories": ActionCategories,
		"main":       ActionMainMenu,
	}
	idVerbs = map[string]ActionKind{
		"category": ActionCategory,
		"service":  ActionService,
		"full":     ActionFullPost,
	}
	argVerbs = map[string]ActionKind{
		"complete": ActionComplete,
		"tag":      ActionTagPosts,
		"sub":      ActionToggleSubscription,
	}
	verbOf = func() map[ActionKind]string {
		m := make(map[ActionKind]string)
		for _, src := range []map[string]ActionKind{bareVerbs, idVerbs, argVerbs} {
			for v, k := range src {
				m[k] = v
			}
		}
		return m
	}()
)

// CategoryAction selects a catalog category.
func CategoryAction(id uint) Action { return Action{Kind: ActionCategory, ID: int64(id)} }

// ServiceAction selects a service within the current category.
func ServiceAction(id uint) Action { return Action{Kind: ActionService, ID: int64(id)} }

// FullPostAction asks for the full text of a post.
func FullPostAction(id uint) Action { return Action{Kind: ActionFullPost, ID: int64(id)} }

// CompleteAction lets an operator resolve the order with the given code.
func CompleteAction(code string) Action { return Action{Kind: ActionComplete, Arg: code} }

// TagPostsAction lists recent posts carrying tag.
func TagPostsAction(tag string) Action { return Action{Kind: ActionTagPosts, Arg: tag} }

// ToggleSubscriptionAction flips the caller's subscription to tag.
func ToggleSubscriptionAction(tag string) Action {
	return Action{Kind: ActionToggleSubscription, Arg: tag}
}

// SimpleAction builds an argument-less action.
func SimpleAction(kind ActionKind) Action { return Action{Kind: kind} }

// Encode renders the action as a "<verb>" or "<verb>_<arg>" token.
func (a Action) Encode() string {
	verb, ok := verbOf[a.Kind]
	if !ok {
		return ""
	}
	if _, ok := idVerbs[verb]; ok {
		return verb + "_" + strconv.FormatInt(a.ID, 10)
	}
	if _, ok := argVerbs[verb]; ok {
		return verb + "_" + a.Arg
	}
	return verb
}

// String implements fmt.Stringer.
func (a Action) String() string { return a.Encode() }

// ParseAction decodes a callback token produced by Encode.
func ParseAction(token string) (Action, error) {
	token = strings.TrimSpace(token)
	if k, ok := bareVerbs[token]; ok {
		return Action{Kind: k}, nil
	}
	verb, arg, found := strings.Cut(token, "_")
	if !found || arg == "" {
		return Action{}, ErrUnknownAction
	}
	if k, ok := idVerbs[verb]; ok {
		id, err := strconv.ParseInt(arg, 10, 64)
		if err != nil || id <= 0 {
			return Action{}, ErrUnknownAction
		}
		return Action{Kind: k, ID: id}, nil
	}
	if k, ok := argVerbs[verb]; ok {
		return Action{Kind: k, Arg: arg}, nil
	}
	return Action{}, ErrUnknownAction
}
