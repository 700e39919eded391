package services

import (
	"fmt"
	"strings"

	"github.com/tbourn/go-service-desk/internal/domain"
	"github.com/tbourn/go-service-desk/internal/gateway"
	"github.com/tbourn/go-service-desk/internal/repo"
)

// Reply-menu labels. Users tap them and the platform sends the label as text.
const (
	MenuServices      = "📋 Services"
	MenuTrack         = "🔎 Track order"
	MenuMyOrders      = "🗂 My orders"
	MenuSearch        = "🔍 Search posts"
	MenuSubscriptions = "🔔 Subscriptions"
	MenuSettings      = "⚙️ Settings"

	CommandStart  = "/start"
	CommandCancel = "/cancel"
)

// Draft labels for non-text material.
const (
	DraftPhoto      = "📷 Photo"
	DraftDocument   = "📄 "
	DraftAttachment = "📝 Attachment"
	NoDocuments     = "⛔ No documents submitted"
	NoRequirements  = "—"
)

// User-facing texts.
const (
	textWelcome          = "Welcome to the service desk. Choose an option from the menu."
	textUseMenu          = "Please use the menu below."
	textChooseCategory   = "Choose a category:"
	textNoCategories     = "The catalog is empty for now."
	textNoServices       = "There are no services in this category yet."
	textDocumentReceived = "✅ Received. Send more material or press Submit."
	textCancelled        = "Request cancelled."
	textNoActiveRequest  = "There is no request in progress."
	textFailure          = "Something went wrong. Please try again later."
	textBlocked          = "Your access to the desk has been restricted."
	textTrackPrompt      = "Send the tracking code of your order:"
	textOrderNotFound    = "No order with this code was found."
	textNoOrders         = "You have no orders yet."
	textSearchPrompt     = "Send a keyword to search post titles:"
	textEmptyKeyword     = "The keyword is empty. Send a word to search for:"
	textNothingFound     = "Nothing found."
	textPostGone         = "This post is no longer available."
	textNoHashtags       = "There are no tags to subscribe to yet."
	textSubscriptions    = "Tap a tag to subscribe or unsubscribe:"
	textLimitPrompt      = "How many posts should be shown at once? Send a number from 1 to %d."
	textLimitNotNumber   = "Please send a number."
	textLimitRange       = "The number must be between 1 and %d."
	textLimitSaved       = "Saved: up to %d posts will be shown."
	textOperatorOnly     = "Only operators can do this."
)

// MainMenu is the persistent reply keyboard.
func MainMenu() *gateway.Keyboard {
	return &gateway.Keyboard{Reply: [][]string{
		{MenuServices, MenuTrack},
		{MenuMyOrders, MenuSearch},
		{MenuSubscriptions, MenuSettings},
	}}
}

func categoriesKeyboard(cats []domain.Category) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	for _, c := range cats {
		kb.Inline = append(kb.Inline, gateway.InlineRow(c.Name, domain.CategoryAction(c.ID)))
	}
	return kb
}

func servicesKeyboard(svcs []domain.Service) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	for _, s := range svcs {
		kb.Inline = append(kb.Inline, gateway.InlineRow(s.Title, domain.ServiceAction(s.ID)))
	}
	kb.Inline = append(kb.Inline, gateway.InlineRow("⬅️ Back", domain.SimpleAction(domain.ActionCategories)))
	return kb
}

func collectKeyboard() *gateway.Keyboard {
	return &gateway.Keyboard{Inline: [][]gateway.Button{{
		{Label: "📨 Submit", Action: domain.SimpleAction(domain.ActionSubmit)},
		{Label: "✖️ Cancel", Action: domain.SimpleAction(domain.ActionCancel)},
	}}}
}

func completeKeyboard(code string) *gateway.Keyboard {
	return &gateway.Keyboard{Inline: [][]gateway.Button{
		gateway.InlineRow("✔️ Mark complete", domain.CompleteAction(code)),
	}}
}

func fullPostKeyboard(postID uint) *gateway.Keyboard {
	return &gateway.Keyboard{Inline: [][]gateway.Button{
		gateway.InlineRow("📖 View full", domain.FullPostAction(postID)),
	}}
}

func serviceIntroText(s *domain.Service) string {
	docs := s.RequiredDocuments()
	req := NoRequirements
	if len(docs) > 0 {
		req = "• " + strings.Join(docs, "\n• ")
	}
	return fmt.Sprintf("📌 %s\n\nRequired documents:\n%s\n\nSend the documents as messages, then press Submit.", s.Title, req)
}

func submittedText(code string) string {
	return fmt.Sprintf("✅ Your request has been submitted.\nTracking code: %s", code)
}

func operatorNotificationText(u *domain.User, serviceTitle, code string) string {
	handle := "—"
	if u.Username != "" {
		handle = "@" + u.Username
	}
	return fmt.Sprintf("🆕 New request\nFrom: %s (%s)\nID: %d\nService: %s\nCode: %s",
		u.DisplayName(), handle, u.ID, serviceTitle, code)
}

func completedText(code string) string {
	return fmt.Sprintf("✅ Your order %s has been completed.", code)
}

func orderStatusLabel(status string) string {
	if status == domain.OrderStatusCompleted {
		return "completed"
	}
	return "new"
}

func trackText(v *repo.OrderView) string {
	return fmt.Sprintf("Order %s\nService: %s\nStatus: %s\nCreated: %s",
		v.Code, v.ServiceTitle, orderStatusLabel(v.Status), v.CreatedAt.Format("2006-01-02 15:04"))
}

func ordersText(list []repo.OrderView) string {
	var b strings.Builder
	b.WriteString("Your recent orders:")
	for _, v := range list {
		fmt.Fprintf(&b, "\n• %s: %s (%s)", v.Code, v.ServiceTitle, orderStatusLabel(v.Status))
	}
	return b.String()
}

func postListText(header string, posts []domain.Post) string {
	var b strings.Builder
	b.WriteString(header)
	for _, p := range posts {
		fmt.Fprintf(&b, "\n• %s", p.Title)
	}
	return b.String()
}

func postListKeyboard(posts []domain.Post) *gateway.Keyboard {
	kb := &gateway.Keyboard{}
	for _, p := range posts {
		kb.Inline = append(kb.Inline, gateway.InlineRow(p.Title, domain.FullPostAction(p.ID)))
	}
	return kb
}

func fullPostText(p *domain.Post, tags []string) string {
	if len(tags) == 0 {
		return p.Content
	}
	return p.Content + "\n\n" + "#" + strings.Join(tags, " #")
}

func settingsText(s domain.UserSettings) string {
	state := "on"
	if !s.NotificationsEnabled {
		state = "off"
	}
	return fmt.Sprintf("⚙️ Settings\nPosts per list: %d\nNotifications: %s", s.PostLimit, state)
}

func settingsKeyboard(s domain.UserSettings) *gateway.Keyboard {
	toggle := gateway.InlineRow("🔕 Turn notifications off", domain.SimpleAction(domain.ActionNotificationsOff))
	if !s.NotificationsEnabled {
		toggle = gateway.InlineRow("🔔 Turn notifications on", domain.SimpleAction(domain.ActionNotificationsOn))
	}
	return &gateway.Keyboard{Inline: [][]gateway.Button{
		gateway.InlineRow("🔢 Posts per list", domain.SimpleAction(domain.ActionSetPostLimit)),
		toggle,
	}}
}
