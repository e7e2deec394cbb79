package core

import "pkt.systems/icoder/schema"

// openTab activates an existing tab for the file or appends a new one.
func openTab(tabs []schema.Tab, file schema.File) ([]schema.Tab, schema.Tab) {
	for _, t := range tabs {
		if t.ID == file.ID {
			return tabs, t
		}
	}
	tab := schema.Tab{ID: file.ID, Name: file.Name}
	return append(append([]schema.Tab(nil), tabs...), tab), tab
}

// closeTab removes the tab and picks the neighbouring tab as active when the
// closed tab was active.
func closeTab(tabs []schema.Tab, active schema.FileID, id schema.FileID) ([]schema.Tab, schema.FileID, bool) {
	idx := -1
	for i, t := range tabs {
		if t.ID == id {
			idx = i
			break
		}
	}
	if idx == -1 {
		return tabs, active, false
	}
	next := make([]schema.Tab, 0, len(tabs)-1)
	next = append(next, tabs[:idx]...)
	next = append(next, tabs[idx+1:]...)
	if active == id {
		active = ""
		if len(next) > 0 {
			if idx >= len(next) {
				idx = len(next) - 1
			}
			active = next[idx].ID
		}
	}
	return next, active, true
}

// markDirty flags the tab for a directly edited file.
func markDirty(tabs []schema.Tab, id schema.FileID) []schema.Tab {
	next := append([]schema.Tab(nil), tabs...)
	for i := range next {
		if next[i].ID == id {
			next[i].IsDirty = true
		}
	}
	return next
}
