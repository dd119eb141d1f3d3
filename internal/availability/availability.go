// Package availability derives free-space state per site and per site group
// from calibrated capacities and the latest marker counts.
package availability

import (
	"sort"
	"time"
	"unicode/utf8"

	"parkmap-service/internal/domain/parking"
)

type State string

const (
	StateHasSpace  State = "has_space"
	StateSomeSpace State = "some_space"
	StateNoSpace   State = "no_space"
	StateUnknown   State = "unknown"
)

type Area struct {
	AreaID       string     `json:"area_id"`
	Capacity     int        `json:"capacity_est"`
	CurrentCount *int       `json:"current_count"`
	FreeSlots    int        `json:"free_slots"`
	State        State      `json:"state"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

type Group struct {
	Key          string     `json:"group"`
	Areas        []string   `json:"areas"`
	Capacity     int        `json:"capacity_est"`
	CurrentCount *int       `json:"current_count"`
	FreeSlots    int        `json:"free_slots"`
	State        State      `json:"state"`
	UpdatedAt    *time.Time `json:"updated_at"`
}

// Areas joins sites with their counts. A site without a count is unknown;
// a count without a calibrated site is reported with zero capacity.
func Areas(sites []parking.Site, counts []parking.AreaCount) []Area {
	byID := make(map[string]*Area, len(sites))
	for _, s := range sites {
		byID[s.ID] = &Area{AreaID: s.ID, Capacity: max(s.Capacity, 0)}
	}
	for _, c := range counts {
		a, ok := byID[c.SiteID]
		if !ok {
			a = &Area{AreaID: c.SiteID}
			byID[c.SiteID] = a
		}
		n := c.Count
		at := c.ObservedAt
		a.CurrentCount = &n
		a.UpdatedAt = &at
	}

	out := make([]Area, 0, len(byID))
	for _, a := range byID {
		if a.CurrentCount == nil {
			a.State = StateUnknown
		} else {
			a.FreeSlots = max(a.Capacity-*a.CurrentCount, 0)
			a.State = StateNoSpace
			if a.FreeSlots >= 1 {
				a.State = StateHasSpace
			}
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AreaID < out[j].AreaID })
	return out
}

// Groups aggregates areas by the first character of their id. One unknown
// member makes the whole group unknown. A group with free slots but no more
// than half its capacity free reports some_space.
func Groups(areas []Area) []Group {
	byKey := make(map[string]*Group)
	var keys []string
	for _, a := range areas {
		if a.AreaID == "" {
			continue
		}
		r, _ := utf8.DecodeRuneInString(a.AreaID)
		key := string(r)
		g, ok := byKey[key]
		if !ok {
			zero := 0
			g = &Group{Key: key, CurrentCount: &zero}
			byKey[key] = g
			keys = append(keys, key)
		}

		g.Areas = append(g.Areas, a.AreaID)
		g.Capacity += a.Capacity
		if a.CurrentCount == nil {
			g.CurrentCount = nil
		} else if g.CurrentCount != nil {
			sum := *g.CurrentCount + *a.CurrentCount
			g.CurrentCount = &sum
		}
		if a.UpdatedAt != nil && (g.UpdatedAt == nil || a.UpdatedAt.After(*g.UpdatedAt)) {
			at := *a.UpdatedAt
			g.UpdatedAt = &at
		}
	}

	sort.Strings(keys)
	out := make([]Group, 0, len(keys))
	for _, k := range keys {
		g := byKey[k]
		g.State = groupState(g)
		out = append(out, *g)
	}
	return out
}

func groupState(g *Group) State {
	if g.CurrentCount == nil {
		g.FreeSlots = 0
		return StateUnknown
	}
	g.FreeSlots = max(g.Capacity-*g.CurrentCount, 0)
	switch {
	case g.FreeSlots == 0:
		return StateNoSpace
	case g.FreeSlots <= g.Capacity/2:
		return StateSomeSpace
	default:
		return StateHasSpace
	}
}
