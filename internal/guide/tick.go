package guide

import "time"

// TickExpiry is how long a tick stays relevant. Ticks older than this
// are pruned when a persisted set is loaded.
const TickExpiry = 30 * 24 * time.Hour

// Tick marks one specific episode as followed regardless of bookmark
// rules. Identity is the (title, channel id, start time) triple.
// Unlike bookmarks, the title comparison is exact: a tick refers to one
// concrete listing, not a recurring rule.
type Tick struct {
	Title     string
	ChannelID string
	Start     DateTime
	Timestamp time.Time
}

func NewTick(title, channelID string, start DateTime) *Tick {
	return &Tick{Title: title, ChannelID: channelID, Start: start, Timestamp: time.Now()}
}

// Match reports whether p is the exact episode this tick refers to.
func (t *Tick) Match(p *Programme) bool {
	if !p.Start.Equal(t.Start) {
		return false
	}
	if p.Channel().ID() != t.ChannelID {
		return false
	}
	return p.Title() == t.Title
}

// Expired reports whether the tick is older than the expiry threshold
// at the given reference time.
func (t *Tick) Expired(now time.Time) bool {
	return !t.Timestamp.IsZero() && now.Sub(t.Timestamp) > TickExpiry
}
