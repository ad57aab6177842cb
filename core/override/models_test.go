package override

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/maktaba/core"
)

func TestOverride_IsActive(t *testing.T) {
	ovr := Override{ExtendedDueDate: core.MustParseDate("2024-02-20")}
	assert.True(t, ovr.IsActive(core.MustParseDate("2024-02-19")))
	assert.True(t, ovr.IsActive(core.MustParseDate("2024-02-20")), "active through its extended due date")
	assert.False(t, ovr.IsActive(core.MustParseDate("2024-02-21")))
}

func TestActiveFor(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	today := core.MustParseDate("2024-02-10")
	overrides := []Override{
		{ID: "old", StudentID: "alice", ExtendedDueDate: core.MustParseDate("2024-03-01"), CreatedAt: t0},
		{ID: "new", StudentID: "alice", ExtendedDueDate: core.MustParseDate("2024-02-15"), CreatedAt: t0.Add(time.Hour)},
		{ID: "expired", StudentID: "alice", ExtendedDueDate: core.MustParseDate("2024-02-01"), CreatedAt: t0.Add(2 * time.Hour)},
		{ID: "bob", StudentID: "bob", ExtendedDueDate: core.MustParseDate("2024-02-09"), CreatedAt: t0},
	}

	got := ActiveFor(overrides, "alice", today)
	require.NotNil(t, got)
	assert.Equal(t, "new", got.ID)

	assert.Nil(t, ActiveFor(overrides, "bob", today))
	assert.Nil(t, ActiveFor(overrides, "carol", today))
}
