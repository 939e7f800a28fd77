package audit

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestCategoryFollowsAction(t *testing.T) {
	assert.Equal(t, CategoryCompliance, EventBindingForced.Category())
	assert.Equal(t, CategorySecurity, EventSyncConflictDetected.Category())
	assert.Equal(t, CategoryOperations, EventOperationReplayed.Category())
	assert.Equal(t, CategoryOperations, AuditEvent("something_new").Category())
}

func TestNormalize(t *testing.T) {
	now := time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC)
	issues := []string{"contract not signed"}

	e := Normalize(Event{Action: string(EventBindingForced), Category: CategoryOperations, Issues: issues}, now)
	issues[0] = "mutated"

	assert.NotEqual(t, uuid.Nil, e.ID)
	assert.Equal(t, now, e.Timestamp)
	assert.Equal(t, CategoryCompliance, e.Category)
	assert.Equal(t, []string{"contract not signed"}, e.Issues)

	custom := now.Add(-time.Hour)
	assert.Equal(t, custom, Normalize(Event{Action: "x", Timestamp: custom}, now).Timestamp)
}
