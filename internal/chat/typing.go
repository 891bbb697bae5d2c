package chat

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/NorthgateLabs/livechat_svc/internal/model"
)

// TypingFreshnessWindow is the threshold past which a typing signal is stale.
const TypingFreshnessWindow = 3 * time.Second

// TypingTracker keeps the ephemeral per-(thread, actor) last-activity record.
type TypingTracker struct {
	database *gorm.DB
	window   time.Duration
}

// NewTypingTracker creates a TypingTracker with the default freshness window.
func NewTypingTracker(database *gorm.DB) *TypingTracker {
	return &TypingTracker{database: database, window: TypingFreshnessWindow}
}

// WithFreshnessWindow overrides the freshness window.
func (tracker *TypingTracker) WithFreshnessWindow(window time.Duration) *TypingTracker {
	tracker.window = window
	return tracker
}

// Touch records typing activity for the actor in the thread. The write is a
// single atomic upsert against the (thread_id, actor_member_id) unique
// index, so concurrent touches from rapid keystrokes cannot race into
// duplicate rows.
func (tracker *TypingTracker) Touch(ctx context.Context, threadID uint64, actorMemberID uint64) error {
	now := time.Now().UTC()
	return tracker.database.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "thread_id"}, {Name: "actor_member_id"}},
			DoUpdates: clause.Assignments(map[string]any{
				"updated_at": now,
			}),
		}).
		Create(&model.TypingState{
			ThreadID:      threadID,
			ActorMemberID: actorMemberID,
			UpdatedAt:     now,
		}).Error
}

// IsFresh reports whether the actor's typing record exists and is within
// the freshness window relative to the supplied instant.
func (tracker *TypingTracker) IsFresh(ctx context.Context, threadID uint64, actorMemberID uint64, now time.Time) (bool, error) {
	var state model.TypingState
	lookupErr := tracker.database.WithContext(ctx).
		First(&state, "thread_id = ? AND actor_member_id = ?", threadID, actorMemberID).Error
	if errors.Is(lookupErr, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if lookupErr != nil {
		return false, lookupErr
	}
	return now.Sub(state.UpdatedAt) <= tracker.window, nil
}
