package action

import (
	"time"

	"github.com/google/uuid"
)

type ActionKind string

const (
	KindBlock ActionKind = "block"
)

type ActionStatus string

const (
	StatusPending ActionStatus = "pending"
	StatusDone    ActionStatus = "done"
	// Cancelled statuses record why a pending block was dropped during
	// classification. All of them are terminal.
	StatusCancelledDuplicate ActionStatus = "cancelled_duplicate"
	StatusCancelledFollowing ActionStatus = "cancelled_following"
	StatusCancelledUnblocked ActionStatus = "cancelled_unblocked"
	StatusCancelledSelf      ActionStatus = "cancelled_self"
	// StatusDeferredTargetSuspended marks targets that were absent from the
	// relationship lookup (suspended or deactivated upstream). The selection
	// queries only pick up 'pending' rows, so this is terminal too.
	StatusDeferredTargetSuspended ActionStatus = "deferred_target_suspended"
)

type Action struct {
	ID        uuid.UUID    `json:"id"`
	SourceUID string       `json:"sourceUid"`
	SinkUID   string       `json:"sinkUid"`
	Kind      ActionKind   `json:"kind"`
	Status    ActionStatus `json:"status"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

type StatusCount struct {
	Status ActionStatus `json:"status"`
	Count  int          `json:"count"`
}
