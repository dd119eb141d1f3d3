package availability

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parkmap-service/internal/domain/parking"
)

func intPtr(n int) *int { return &n }

func TestAreas(t *testing.T) {
	t0 := time.Date(2025, 7, 12, 8, 0, 0, 0, time.UTC)
	sites := []parking.Site{
		{ID: "A02", Capacity: 4},
		{ID: "A01", Capacity: 6},
		{ID: "B01", Capacity: 3},
	}
	counts := []parking.AreaCount{
		{SiteID: "A01", Count: 2, ObservedAt: t0},
		{SiteID: "A02", Count: 5, ObservedAt: t0.Add(time.Minute)},
		{SiteID: "C09", Count: 1, ObservedAt: t0},
	}

	areas := Areas(sites, counts)
	require.Len(t, areas, 4)

	assert.Equal(t, "A01", areas[0].AreaID)
	assert.Equal(t, 4, areas[0].FreeSlots)
	assert.Equal(t, StateHasSpace, areas[0].State)

	assert.Equal(t, 0, areas[1].FreeSlots, "over capacity clamps to zero")
	assert.Equal(t, StateNoSpace, areas[1].State)

	assert.Equal(t, "B01", areas[2].AreaID)
	assert.Nil(t, areas[2].CurrentCount)
	assert.Equal(t, StateUnknown, areas[2].State)

	assert.Equal(t, "C09", areas[3].AreaID)
	assert.Equal(t, 0, areas[3].Capacity)
	assert.Equal(t, StateNoSpace, areas[3].State)
}

func TestGroups_HalfRule(t *testing.T) {
	tests := []struct {
		name     string
		capacity int
		count    int
		want     State
		free     int
	}{
		{"full", 10, 10, StateNoSpace, 0},
		{"over", 10, 12, StateNoSpace, 0},
		{"half free", 10, 5, StateSomeSpace, 5},
		{"one free", 10, 9, StateSomeSpace, 1},
		{"more than half", 10, 4, StateHasSpace, 6},
		{"odd capacity", 5, 2, StateHasSpace, 3},
		{"odd capacity at half", 5, 3, StateSomeSpace, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			groups := Groups([]Area{{AreaID: "A01", Capacity: tt.capacity, CurrentCount: intPtr(tt.count)}})
			require.Len(t, groups, 1)
			assert.Equal(t, tt.want, groups[0].State)
			assert.Equal(t, tt.free, groups[0].FreeSlots)
		})
	}
}

func TestGroups_Aggregates(t *testing.T) {
	t0 := time.Date(2025, 7, 12, 8, 0, 0, 0, time.UTC)
	t1 := t0.Add(time.Hour)
	areas := []Area{
		{AreaID: "B01", Capacity: 4, CurrentCount: intPtr(1), UpdatedAt: &t0},
		{AreaID: "A01", Capacity: 6, CurrentCount: intPtr(2), UpdatedAt: &t0},
		{AreaID: "A02", Capacity: 4, CurrentCount: intPtr(1), UpdatedAt: &t1},
		{AreaID: "B02", Capacity: 4},
	}

	groups := Groups(areas)
	require.Len(t, groups, 2)

	a := groups[0]
	assert.Equal(t, "A", a.Key)
	assert.Equal(t, []string{"A01", "A02"}, a.Areas)
	assert.Equal(t, 10, a.Capacity)
	require.NotNil(t, a.CurrentCount)
	assert.Equal(t, 3, *a.CurrentCount)
	assert.Equal(t, 7, a.FreeSlots)
	assert.Equal(t, StateHasSpace, a.State)
	assert.True(t, t1.Equal(*a.UpdatedAt))

	b := groups[1]
	assert.Nil(t, b.CurrentCount, "one unknown member makes the group unknown")
	assert.Equal(t, StateUnknown, b.State)
	assert.Equal(t, 0, b.FreeSlots)
}

func TestGroups_MultiByteKey(t *testing.T) {
	groups := Groups([]Area{
		{AreaID: "東01", Capacity: 4, CurrentCount: intPtr(1), FreeSlots: 3},
		{AreaID: "東02", Capacity: 2, CurrentCount: intPtr(2), FreeSlots: 0},
		{AreaID: "A01", Capacity: 2, CurrentCount: intPtr(0), FreeSlots: 2},
	})

	require.Len(t, groups, 2)
	assert.Equal(t, "A", groups[0].Key)
	assert.Equal(t, "東", groups[1].Key)
	assert.Equal(t, []string{"東01", "東02"}, groups[1].Areas)
	assert.Equal(t, 6, groups[1].Capacity)
}
