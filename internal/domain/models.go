// Package domain defines the persistence models for users, the service
// catalog, orders, channel posts, hashtags, subscriptions and per-user
// settings. These types are mapped with GORM and form the core data layer
// of the service desk.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Order statuses.
const (
	OrderStatusNew       = "new"
	OrderStatusCompleted = "completed"
)

// User is a person talking to the desk. The ID is the opaque numeric identity
// assigned by the messaging platform, so it is not auto-incremented.
//
// Fields:
//   - ID: platform identity (primary key).
//   - FirstName / LastName / Username: display data refreshed on every contact.
//   - Blocked: moderation flag; blocked users are ignored by the workflow.
//   - LastSeen: touched on every inbound event.
type User struct {
	ID        int64     `json:"id"         gorm:"primaryKey;autoIncrement:false"`
	FirstName string    `json:"first_name" gorm:"type:varchar(255)"`
	LastName  string    `json:"last_name"  gorm:"type:varchar(255)"`
	Username  string    `json:"username"   gorm:"type:varchar(255);index"`
	Blocked   bool      `json:"blocked"    gorm:"not null;default:false"`
	LastSeen  time.Time `json:"last_seen"  gorm:"index"`
	CreatedAt time.Time `json:"created_at"`
}

// TableName returns the database table name for User.
func (User) TableName() string { return "users" }

// DisplayName returns the best human-readable name for the user.
func (u User) DisplayName() string {
	name := strings.TrimSpace(strings.TrimSpace(u.FirstName) + " " + strings.TrimSpace(u.LastName))
	if name != "" {
		return name
	}
	if u.Username != "" {
		return "@" + u.Username
	}
	return "user"
}

// Category groups requestable services.
type Category struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the database table name for Category.
func (Category) TableName() string { return "categories" }

// Service is a requestable item. Documents holds a JSON array of
// required-document descriptors, or is empty when nothing is required.
type Service struct {
	ID         uint   `json:"id"          gorm:"primaryKey"`
	CategoryID uint   `json:"category_id" gorm:"not null;index;uniqueIndex:ux_service_category_title,priority:1"`
	Title      string `json:"title"       gorm:"type:varchar(255);not null;uniqueIndex:ux_service_category_title,priority:2"`
	Documents  string `json:"documents"   gorm:"type:text"`

	Category Category `json:"-" gorm:"foreignKey:CategoryID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Service.
func (Service) TableName() string { return "services" }

// RequiredDocuments decodes the descriptor list. Malformed JSON is treated as
// a single free-text descriptor so operator typos still reach the user.
func (s Service) RequiredDocuments() []string {
	raw := strings.TrimSpace(s.Documents)
	if raw == "" {
		return nil
	}
	var docs []string
	if err := json.Unmarshal([]byte(raw), &docs); err != nil {
		return []string{raw}
	}
	out := docs[:0]
	for _, d := range docs {
		if d = strings.TrimSpace(d); d != "" {
			out = append(out, d)
		}
	}
	return out
}

// SetRequiredDocuments encodes docs into the Documents column.
func (s *Service) SetRequiredDocuments(docs []string) {
	if len(docs) == 0 {
		s.Documents = ""
		return
	}
	b, _ := json.Marshal(docs)
	s.Documents = string(b)
}

// Order is a submitted service request. Docs is cleared (NULL) once the order
// is completed.
type Order struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	UserID    int64     `json:"user_id"    gorm:"not null;index:idx_user_orders,priority:1"`
	ServiceID uint      `json:"service_id" gorm:"not null;index"`
	Code      string    `json:"code"       gorm:"type:varchar(16);not null;uniqueIndex"`
	Docs      *string   `json:"docs,omitempty" gorm:"type:text"`
	Status    string    `json:"status"     gorm:"type:varchar(16);not null;default:'new';check:status IN ('new','completed')"`
	CreatedAt time.Time `json:"created_at" gorm:"index:idx_user_orders,priority:2"`

	User    User    `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Service Service `json:"-" gorm:"foreignKey:ServiceID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Order.
func (Order) TableName() string { return "orders" }

// Post is a channel content item keyed by its source message id.
type Post struct {
	ID        uint      `json:"id"         gorm:"primaryKey"`
	SourceID  int64     `json:"source_id"  gorm:"not null;uniqueIndex"`
	Title     string    `json:"title"      gorm:"type:varchar(255);not null"`
	Content   string    `json:"content"    gorm:"type:text;not null"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// TableName returns the database table name for Post.
func (Post) TableName() string { return "posts" }

// Hashtag is a unique tag name, stored without the leading '#'.
type Hashtag struct {
	ID   uint   `json:"id"   gorm:"primaryKey"`
	Name string `json:"name" gorm:"type:varchar(255);not null;uniqueIndex"`
}

// TableName returns the database table name for Hashtag.
func (Hashtag) TableName() string { return "hashtags" }

// PostHashtag links a post to one of its tags.
type PostHashtag struct {
	PostID    uint `gorm:"primaryKey;autoIncrement:false"`
	HashtagID uint `gorm:"primaryKey;autoIncrement:false;index"`

	Post    Post    `gorm:"foreignKey:PostID;references:ID;constraint:OnDelete:CASCADE"`
	Hashtag Hashtag `gorm:"foreignKey:HashtagID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for PostHashtag.
func (PostHashtag) TableName() string { return "post_hashtags" }

// Subscription marks a user's interest in a hashtag.
type Subscription struct {
	UserID    int64 `gorm:"primaryKey;autoIncrement:false"`
	HashtagID uint  `gorm:"primaryKey;autoIncrement:false;index"`

	User    User    `gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
	Hashtag Hashtag `gorm:"foreignKey:HashtagID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for Subscription.
func (Subscription) TableName() string { return "subscriptions" }

// UserSettings stores per-user display and notification preferences.
// Rows are created lazily on first write; readers fall back to defaults.
type UserSettings struct {
	UserID               int64 `json:"user_id"               gorm:"primaryKey;autoIncrement:false"`
	PostLimit            int   `json:"post_limit"            gorm:"not null;default:5"`
	NotificationsEnabled bool  `json:"notifications_enabled" gorm:"not null;default:true"`

	User User `json:"-" gorm:"foreignKey:UserID;references:ID;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for UserSettings.
func (UserSettings) TableName() string { return "user_settings" }
