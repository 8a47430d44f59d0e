package vocabulary

import (
	"sort"
	"strings"
	"time"
)

type DateFilter string

const (
	DateAll   DateFilter = "all"
	DateToday DateFilter = "today"
	DateWeek  DateFilter = "week"
	DateMonth DateFilter = "month"
)

type SortOption string

const (
	SortRecent       SortOption = "recent"
	SortAlphabetical SortOption = "alphabetical"
)

// AllVideos disables the video filter
const AllVideos = "all"

const (
	day   = 24 * time.Hour
	week  = 7 * day
	month = 30 * day
)

type Filter struct {
	Search string
	Date   DateFilter
	Video  string
	Sort   SortOption
}

func (f Filter) Active() bool {
	return (f.Date != "" && f.Date != DateAll) ||
		(f.Video != "" && f.Video != AllVideos) ||
		(f.Sort != "" && f.Sort != SortRecent) ||
		f.Search != ""
}

// copy in insertion order
func (s *Store) Items() []Item {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneItems(s.items)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

func (s *Store) Get(id string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if i := indexOf(s.items, id); i >= 0 {
		return s.items[i], true
	}
	return Item{}, false
}

// newest first
func (s *Store) Sorted() []Item {
	items := s.Items()
	sortRecent(items)
	return items
}

func (s *Store) ByLanguage(language string) []Item {
	var out []Item
	for _, item := range s.Items() {
		if item.Language == language {
			out = append(out, item)
		}
	}
	return out
}

// case-insensitive match on text, translation or notes
func (s *Store) Search(query string) []Item {
	q := strings.ToLower(query)
	var out []Item
	for _, item := range s.Items() {
		if strings.Contains(strings.ToLower(item.Text), q) ||
			strings.Contains(strings.ToLower(item.Translation), q) ||
			strings.Contains(strings.ToLower(item.Notes), q) {
			out = append(out, item)
		}
	}
	return out
}

func (s *Store) Filter(f Filter) []Item {
	return ApplyFilter(s.Items(), f, s.now())
}

// video titles ordered by their most recent save
func (s *Store) UniqueVideos() []string {
	return UniqueVideos(s.Items())
}

// search, then date, then video, then sort
func ApplyFilter(items []Item, f Filter, now time.Time) []Item {
	out := make([]Item, 0, len(items))
	query := strings.ToLower(strings.TrimSpace(f.Search))

	for _, item := range items {
		if query != "" && !matchesSearch(item, query) {
			continue
		}
		if !withinPeriod(item, f.Date, now) {
			continue
		}
		if f.Video != "" && f.Video != AllVideos && item.VideoTitle != f.Video {
			continue
		}
		out = append(out, item)
	}

	if f.Sort == SortAlphabetical {
		sort.SliceStable(out, func(i, j int) bool {
			return strings.ToLower(out[i].Text) < strings.ToLower(out[j].Text)
		})
	} else {
		sortRecent(out)
	}
	return out
}

func matchesSearch(item Item, query string) bool {
	fields := []string{item.Text, item.Translation, item.Notes}
	if item.Context != nil {
		fields = append(fields, *item.Context)
	}
	for _, field := range fields {
		if field != "" && strings.Contains(strings.ToLower(field), query) {
			return true
		}
	}
	return false
}

func withinPeriod(item Item, filter DateFilter, now time.Time) bool {
	age := time.Duration(now.UnixMilli()-item.Timestamp) * time.Millisecond
	switch filter {
	case DateToday:
		return age < day
	case DateWeek:
		return age < week
	case DateMonth:
		return age < month
	default:
		return true
	}
}

func UniqueVideos(items []Item) []string {
	latest := make(map[string]int64)
	for _, item := range items {
		if item.VideoTitle == "" {
			continue
		}
		if ts, ok := latest[item.VideoTitle]; !ok || item.Timestamp > ts {
			latest[item.VideoTitle] = item.Timestamp
		}
	}

	titles := make([]string, 0, len(latest))
	for title := range latest {
		titles = append(titles, title)
	}
	sort.Slice(titles, func(i, j int) bool {
		if latest[titles[i]] != latest[titles[j]] {
			return latest[titles[i]] > latest[titles[j]]
		}
		return titles[i] < titles[j]
	})
	return titles
}

func sortRecent(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		return items[i].Timestamp > items[j].Timestamp
	})
}
