package domain

import (
	"time"

	"gorm.io/gorm"
)

// Message roles. System messages are reserved for injected notices and are
// never authored by the visitor.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// LeadInfo is the accumulated structured profile of the visitor, built
// incrementally across turns. Fields are only ever set or overwritten, never
// cleared, with one exception: an email on a personal mail domain is rejected
// and the field stays empty (see the dialog package).
//
// LeadInfo is embedded in Session and persisted as lead_* columns.
type LeadInfo struct {
	Name            string `json:"name,omitempty"             gorm:"type:varchar(64)"`
	Email           string `json:"email,omitempty"            gorm:"type:varchar(255)"`
	Company         string `json:"company,omitempty"          gorm:"type:varchar(128)"`
	Phone           string `json:"phone,omitempty"            gorm:"type:varchar(32)"`
	JobTitle        string `json:"job_title,omitempty"        gorm:"type:varchar(128)"`
	Location        string `json:"location,omitempty"         gorm:"type:varchar(128)"`
	ServiceInterest string `json:"service_interest,omitempty" gorm:"type:varchar(64)"`
	Requirements    string `json:"requirements,omitempty"     gorm:"type:text"`
	PreferredTime   string `json:"preferred_time,omitempty"   gorm:"type:varchar(255)"`
}

// Qualified reports whether the lead carries enough identity to be submitted:
// an accepted work email plus at least a name or a company.
func (l LeadInfo) Qualified() bool {
	return l.Email != "" && (l.Name != "" || l.Company != "")
}

// Session is the durable per-visitor conversation record. One session spans
// many turns and survives page reloads until the activity TTL elapses; after
// that it is destroyed wholesale and a fresh one takes its place.
//
// Fields:
//   - ID: stable UUID primary key (char(36)), generated once per session.
//   - Stage: current member of the Stage enumeration.
//   - Lead: embedded lead facts (lead_* columns).
//   - Submitted: set once the lead record has been accepted downstream;
//     never reset, so a session submits at most once.
//   - LastActivity: timestamp of the most recent mutation; drives expiry.
//   - Page / Referrer: attribution captured when the widget first opened.
type Session struct {
	ID           string    `json:"id"            gorm:"type:char(36);primaryKey"`
	Stage        Stage     `json:"stage"         gorm:"type:varchar(32);not null"`
	Lead         LeadInfo  `json:"lead"          gorm:"embedded;embeddedPrefix:lead_"`
	Submitted    bool      `json:"submitted"     gorm:"not null;default:false"`
	LastActivity time.Time `json:"last_activity" gorm:"not null;index"`
	Page         string    `json:"page,omitempty"     gorm:"type:varchar(512)"`
	Referrer     string    `json:"referrer,omitempty" gorm:"type:varchar(512)"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// TableName returns the database table name for Session.
func (Session) TableName() string { return "sessions" }

// ExpiredAt reports whether the session has passed its TTL at the given
// instant. The boundary is exclusive on the "still valid" side: a session
// whose last activity is exactly ttl ago is already expired.
func (s *Session) ExpiredAt(now time.Time, ttl time.Duration) bool {
	return now.Sub(s.LastActivity) >= ttl
}

// Message is a single utterance within a session. Messages are append-only
// and immutable once written; Seq preserves strict turn order independent of
// timestamp resolution.
//
// OffersQuickReplies is an assistant-only hint telling the widget to render
// its suggested-reply buttons under this message.
type Message struct {
	ID                 string         `json:"id"         gorm:"type:char(36);primaryKey"`
	SessionID          string         `json:"session_id" gorm:"type:char(36);not null;index:idx_session_msgs,priority:1"`
	Seq                int            `json:"seq"        gorm:"not null;index:idx_session_msgs,priority:2"`
	Role               string         `json:"role"       gorm:"type:varchar(16);not null;check:role IN ('user','assistant','system')"`
	Content            string         `json:"content"    gorm:"type:text;not null"`
	OffersQuickReplies bool           `json:"offers_quick_replies" gorm:"not null;default:false"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
	DeletedAt          gorm.DeletedAt `json:"-"          gorm:"index"`

	// Session is the parent conversation. Messages are cascade-deleted when
	// their session is destroyed (expiry or reaper).
	Session Session `json:"-" gorm:"foreignKey:SessionID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Message.
func (Message) TableName() string { return "messages" }

// Feedback records a visitor rating (+1 or -1) on one assistant message.
// A session can rate a given message once (enforced by unique index).
type Feedback struct {
	ID        string         `json:"id"         gorm:"type:char(36);primaryKey"`
	MessageID string         `json:"message_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_session"`
	SessionID string         `json:"session_id" gorm:"type:char(36);not null;index;uniqueIndex:ux_feedback_message_session"`
	Value     int            `json:"value"      gorm:"not null;check:value IN (-1,1)"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `json:"-"          gorm:"index"`

	// Message is the rated assistant message. Feedback is cascade-deleted if
	// the underlying message is removed.
	Message Message `json:"-" gorm:"foreignKey:MessageID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for Feedback.
func (Feedback) TableName() string { return "feedback" }
