package model

import "time"

// GuestAuthorID is the AuthorMemberID sentinel for guest-authored messages.
// It is never a real member id.
const GuestAuthorID uint64 = 0

type Website struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	OwnerMemberID uint64    `gorm:"index;not null"`
	Name          string    `gorm:"not null;size:200"`
	Origin        string    `gorm:"size:500"`
	Enabled       bool      `gorm:"not null;default:true"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

type Thread struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	WebsiteID     uint64    `gorm:"index;not null"`
	OwnerMemberID uint64    `gorm:"index;not null"`
	GuestID       uint64    `gorm:"not null"`
	Secret        string    `gorm:"uniqueIndex;not null;size:36"`
	CreatedAt     time.Time `gorm:"autoCreateTime"`
}

// Guest is created together with its Thread and never updated afterward.
type Guest struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	Name      string    `gorm:"size:200"`
	Email     string    `gorm:"size:320"`
	IP        string    `gorm:"size:64"`
	Latitude  float64
	Longitude float64
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// Message.Seen is monotonic: once set it is never reset.
type Message struct {
	ID             uint64    `gorm:"primaryKey;autoIncrement"`
	ThreadID       uint64    `gorm:"index;not null"`
	AuthorMemberID uint64    `gorm:"not null;default:0"`
	Body           string    `gorm:"size:4000"`
	Seen           bool      `gorm:"not null;default:false"`
	CreatedAt      time.Time `gorm:"autoCreateTime"`
}

type Attachment struct {
	ID        uint64    `gorm:"primaryKey;autoIncrement"`
	MessageID uint64    `gorm:"index;not null"`
	Link      string    `gorm:"not null;size:500"`
	CreatedAt time.Time `gorm:"autoCreateTime"`
}

// TypingState holds at most one row per (ThreadID, ActorMemberID); writes
// go through an atomic upsert and rows are never deleted. Staleness is the
// expiry mechanism.
type TypingState struct {
	ID            uint64    `gorm:"primaryKey;autoIncrement"`
	ThreadID      uint64    `gorm:"uniqueIndex:idx_typing_thread_actor;not null"`
	ActorMemberID uint64    `gorm:"uniqueIndex:idx_typing_thread_actor;not null"`
	UpdatedAt     time.Time `gorm:"autoUpdateTime"`
}
