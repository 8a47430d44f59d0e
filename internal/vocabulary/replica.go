package vocabulary

import "github.com/vitorvargasdev/streamfluency/internal/tabsync"

// applies remote messages to the in-memory list only, the sender already persisted them
type remoteReplica struct {
	s *Store
}

func (r remoteReplica) AddIfAbsent(item Item) bool {
	r.s.mu.Lock()
	if indexOf(r.s.items, item.ID) >= 0 {
		r.s.mu.Unlock()
		return false
	}
	r.s.items = append(cloneItems(r.s.items), item)
	r.s.mu.Unlock()

	r.s.emit(Event{Action: tabsync.ActionAdd, ID: item.ID, Remote: true})
	return true
}

// a local delete wins over a remote update
func (r remoteReplica) ReplaceIfPresent(item Item) bool {
	r.s.mu.Lock()
	index := indexOf(r.s.items, item.ID)
	if index < 0 {
		r.s.mu.Unlock()
		return false
	}
	next := cloneItems(r.s.items)
	next[index] = item
	r.s.items = next
	r.s.mu.Unlock()

	r.s.emit(Event{Action: tabsync.ActionUpdate, ID: item.ID, Remote: true})
	return true
}

func (r remoteReplica) RemoveIfPresent(id string) bool {
	r.s.mu.Lock()
	index := indexOf(r.s.items, id)
	if index < 0 {
		r.s.mu.Unlock()
		return false
	}
	r.s.items = append(cloneItems(r.s.items[:index]), r.s.items[index+1:]...)
	r.s.mu.Unlock()

	r.s.emit(Event{Action: tabsync.ActionDelete, ID: id, Remote: true})
	return true
}

func (r remoteReplica) RemoveAll() bool {
	r.s.mu.Lock()
	changed := len(r.s.items) > 0
	r.s.items = []Item{}
	r.s.mu.Unlock()

	r.s.emit(Event{Action: tabsync.ActionClear, Remote: true})
	return changed
}
