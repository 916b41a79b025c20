package analytics

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/samber/lo"

	"azusa-imp/internal/storage"
)

// DailyStats summarises the impression journal for one day.
type DailyStats struct {
	Date         string               `json:"date"`
	TotalUpdates int                  `json:"total_updates"`
	UniqueUsers  int                  `json:"unique_users"`
	BySource     map[string]int       `json:"by_source"`
	FieldUpdates map[string]int       `json:"field_updates"`
	UserStats    map[string]UserStats `json:"user_stats"`
}

// UserStats counts the updates of one user.
type UserStats struct {
	UserID       string         `json:"user_id"`
	Updates      int            `json:"updates"`
	FieldUpdates map[string]int `json:"field_updates"`
}

// AnalyzeDailyEntries aggregates entries whose timestamp falls on targetDate
// in targetDate's location.
func AnalyzeDailyEntries(entries []storage.Entry, targetDate time.Time) *DailyStats {
	startOfDay := time.Date(targetDate.Year(), targetDate.Month(), targetDate.Day(), 0, 0, 0, 0, targetDate.Location())
	endOfDay := startOfDay.Add(24 * time.Hour)

	stats := &DailyStats{
		Date:         startOfDay.Format("2006-01-02"),
		BySource:     make(map[string]int),
		FieldUpdates: make(map[string]int),
		UserStats:    make(map[string]UserStats),
	}

	for _, e := range entries {
		if e.Timestamp.Before(startOfDay) || !e.Timestamp.Before(endOfDay) {
			continue
		}
		if len(e.Fields) == 0 {
			continue
		}
		stats.TotalUpdates++
		stats.BySource[e.Source]++

		us, ok := stats.UserStats[e.UserID]
		if !ok {
			us = UserStats{UserID: e.UserID, FieldUpdates: make(map[string]int)}
		}
		us.Updates++
		for field := range e.Fields {
			stats.FieldUpdates[field]++
			us.FieldUpdates[field]++
		}
		stats.UserStats[e.UserID] = us
	}

	stats.UniqueUsers = len(stats.UserStats)
	return stats
}

// Summary renders a short plain-text digest.
func (ds *DailyStats) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Impression updates for %s:\n", ds.Date)
	fmt.Fprintf(&b, "- total updates: %d\n", ds.TotalUpdates)
	fmt.Fprintf(&b, "- users affected: %d\n", ds.UniqueUsers)

	if len(ds.BySource) > 0 {
		sources := lo.Keys(ds.BySource)
		sort.Strings(sources)
		b.WriteString("By source:\n")
		for _, s := range sources {
			fmt.Fprintf(&b, "- %s: %d\n", s, ds.BySource[s])
		}
	}
	if len(ds.FieldUpdates) > 0 {
		fields := lo.Keys(ds.FieldUpdates)
		sort.Strings(fields)
		b.WriteString("By field:\n")
		for _, f := range fields {
			fmt.Fprintf(&b, "- %s: %d\n", f, ds.FieldUpdates[f])
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func (ds *DailyStats) ToJSON() (string, error) {
	data, err := json.MarshalIndent(ds, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}
