package stockcount

import (
	"fmt"
	"strings"
	"time"

	"github.com/erp/stockcount/internal/domain/shared"
	"github.com/google/uuid"
)

// CountState represents the lifecycle state of a count
type CountState string

const (
	CountStateScheduled  CountState = "SCHEDULED"
	CountStateInProgress CountState = "IN_PROGRESS"
	CountStateCompleted  CountState = "COMPLETED"
	CountStateCancelled  CountState = "CANCELLED"
)

// IsValid checks if the state is a known CountState
func (s CountState) IsValid() bool {
	switch s {
	case CountStateScheduled, CountStateInProgress, CountStateCompleted, CountStateCancelled:
		return true
	}
	return false
}

func (s CountState) String() string {
	return string(s)
}

// IsTerminal reports whether no further transition is possible
func (s CountState) IsTerminal() bool {
	return s == CountStateCompleted || s == CountStateCancelled
}

// CanTransitionTo checks if the state can move to target. Transitions only go forward.
func (s CountState) CanTransitionTo(target CountState) bool {
	switch s {
	case CountStateScheduled:
		return target == CountStateInProgress || target == CountStateCancelled
	case CountStateInProgress:
		return target == CountStateCompleted || target == CountStateCancelled
	case CountStateCompleted, CountStateCancelled:
		return false
	}
	return false
}

// CountType describes the scope of a count
type CountType string

const (
	CountTypeFull  CountType = "FULL"
	CountTypeCycle CountType = "CYCLE"
	CountTypeSpot  CountType = "SPOT"
)

func (t CountType) IsValid() bool {
	switch t {
	case CountTypeFull, CountTypeCycle, CountTypeSpot:
		return true
	}
	return false
}

func (t CountType) String() string {
	return string(t)
}

// Count is one physical stock-taking exercise over a set of products and a time window.
// It is the aggregate root that gates every write against its lines, adjustments and movements.
type Count struct {
	shared.BaseAggregateRoot
	Title        string
	Type         CountType
	State        CountState
	WindowStart  time.Time
	WindowEnd    time.Time
	CreatedBy    uuid.UUID
	Counters     []uuid.UUID
	StartedAt    *time.Time
	CompletedAt  *time.Time
	CancelledAt  *time.Time
	CancelReason string
}

// NewCount schedules a new count
func NewCount(title string, countType CountType, windowStart, windowEnd time.Time, createdBy uuid.UUID) (*Count, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, shared.NewValidationError(shared.CodeInvalidInput, "Count title cannot be empty")
	}
	if !countType.IsValid() {
		return nil, shared.NewValidationError(shared.CodeInvalidInput, fmt.Sprintf("Unknown count type: %s", countType))
	}
	if !windowEnd.IsZero() && windowEnd.Before(windowStart) {
		return nil, shared.NewValidationError(shared.CodeInvalidInput, "Count window cannot end before it starts")
	}
	if createdBy == uuid.Nil {
		return nil, shared.NewValidationError(shared.CodeInvalidInput, "Creator ID cannot be empty")
	}

	c := &Count{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Title:             title,
		Type:              countType,
		State:             CountStateScheduled,
		WindowStart:       windowStart,
		WindowEnd:         windowEnd,
		CreatedBy:         createdBy,
		Counters:          make([]uuid.UUID, 0),
	}

	c.Raise(NewCountScheduledEvent(c))

	return c, nil
}

// AssignCounters replaces the set of users allowed to count. Only while Scheduled.
func (c *Count) AssignCounters(userIDs []uuid.UUID) error {
	if c.State != CountStateScheduled {
		return shared.NewStateConflict(shared.CodeInvalidState, fmt.Sprintf("Counters can only be assigned while %s, count is %s", CountStateScheduled, c.State))
	}

	seen := make(map[uuid.UUID]struct{}, len(userIDs))
	counters := make([]uuid.UUID, 0, len(userIDs))
	for _, id := range userIDs {
		if id == uuid.Nil {
			return shared.NewValidationError(shared.CodeInvalidInput, "Counter ID cannot be empty")
		}
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		counters = append(counters, id)
	}

	c.Counters = counters
	c.Touch()
	return nil
}

// HasCounter reports whether the user is an assigned counter
func (c *Count) HasCounter(userID uuid.UUID) bool {
	for _, id := range c.Counters {
		if id == userID {
			return true
		}
	}
	return false
}

// Start moves the count to InProgress. At least one counter must be assigned.
func (c *Count) Start() error {
	if !c.State.CanTransitionTo(CountStateInProgress) {
		return c.transitionError(CountStateInProgress)
	}
	if len(c.Counters) == 0 {
		return shared.NewStateConflict(shared.CodeInvalidState, "Cannot start a count without assigned counters")
	}

	now := time.Now()
	c.State = CountStateInProgress
	c.StartedAt = &now
	c.UpdatedAt = now

	c.Raise(NewCountStartedEvent(c))

	return nil
}

// Complete back-fills every uncounted line with its system quantity and then
// moves the count to Completed. It returns the lines that were back-filled so
// the caller can persist them together with the count.
func (c *Count) Complete(lines []*CountLine) ([]*CountLine, error) {
	if !c.State.CanTransitionTo(CountStateCompleted) {
		return nil, c.transitionError(CountStateCompleted)
	}

	filled := make([]*CountLine, 0)
	for _, line := range lines {
		if line.CountID != c.ID {
			return nil, shared.NewMismatch(fmt.Sprintf("Line %s does not belong to count %s", line.ID, c.ID))
		}
		if !line.IsCounted() {
			line.Backfill()
			filled = append(filled, line)
		}
	}

	now := time.Now()
	c.State = CountStateCompleted
	c.CompletedAt = &now
	c.UpdatedAt = now

	c.Raise(NewCountCompletedEvent(c, len(lines), len(filled)))

	return filled, nil
}

// Cancel abandons the count. Nothing it proposed is ever applied.
func (c *Count) Cancel(reason string) error {
	if !c.State.CanTransitionTo(CountStateCancelled) {
		return c.transitionError(CountStateCancelled)
	}

	now := time.Now()
	c.State = CountStateCancelled
	c.CancelledAt = &now
	c.CancelReason = strings.TrimSpace(reason)
	c.UpdatedAt = now

	c.Raise(NewCountCancelledEvent(c))

	return nil
}

// EnsureInProgress is the gate every write operation checks first
func (c *Count) EnsureInProgress() error {
	if c.State != CountStateInProgress {
		return shared.NewStateConflict(shared.CodeInvalidState, fmt.Sprintf("Count %s is %s, expected %s", c.ID, c.State, CountStateInProgress))
	}
	return nil
}

func (c *Count) transitionError(target CountState) error {
	return shared.NewStateConflict(shared.CodeInvalidState, fmt.Sprintf("Cannot transition count from %s to %s", c.State, target))
}
