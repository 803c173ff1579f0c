package feed

import (
	"sort"

	"github.com/cosmiccode/portal/internal/domain"
	"github.com/cosmiccode/portal/internal/realtime"
)

// ProjectCounts summarises one project's conversation for a viewer.
type ProjectCounts struct {
	Total  int `json:"total"`
	Unread int `json:"unread"`
}

// HeldSet is the set of messages a viewer has seen, across all projects,
// keyed by message id. It is not safe for concurrent use; a Feed owns it.
type HeldSet struct {
	byID map[string]domain.Message
}

// NewHeldSet seeds the set. Duplicate ids in initial keep the last copy.
func NewHeldSet(initial []domain.Message) *HeldSet {
	h := &HeldSet{byID: make(map[string]domain.Message, len(initial))}
	for _, msg := range initial {
		h.Apply(realtime.KindUpdate, msg)
	}
	return h
}

// Apply merges one change. An insert for a known id is a no-op; an update
// replaces the held record or adds it when absent. It reports whether the
// set was modified.
func (h *HeldSet) Apply(kind realtime.Kind, msg domain.Message) bool {
	if msg.ID == "" {
		return false
	}
	switch kind {
	case realtime.KindInsert:
		if _, ok := h.byID[msg.ID]; ok {
			return false
		}
	case realtime.KindUpdate:
	default:
		return false
	}
	h.byID[msg.ID] = msg
	return true
}

// Get returns the held record for id.
func (h *HeldSet) Get(id string) (domain.Message, bool) {
	msg, ok := h.byID[id]
	return msg, ok
}

// Len returns the number of held messages.
func (h *HeldSet) Len() int {
	return len(h.byID)
}

// Visible returns the project's messages ordered by creation time, then id.
func (h *HeldSet) Visible(projectID string) []domain.Message {
	out := make([]domain.Message, 0)
	for _, msg := range h.byID {
		if msg.ProjectID == projectID {
			out = append(out, msg)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Counts returns totals and unread counts per project. Messages sent by
// viewerID never count as unread.
func (h *HeldSet) Counts(viewerID string) map[string]ProjectCounts {
	counts := make(map[string]ProjectCounts)
	for _, msg := range h.byID {
		c := counts[msg.ProjectID]
		c.Total++
		if isUnreadFor(msg, viewerID) {
			c.Unread++
		}
		counts[msg.ProjectID] = c
	}
	return counts
}

// UnreadFrom lists, in id order, the project's unread messages that were not
// sent by viewerID.
func (h *HeldSet) UnreadFrom(projectID, viewerID string) []string {
	var ids []string
	for _, msg := range h.byID {
		if msg.ProjectID == projectID && isUnreadFor(msg, viewerID) {
			ids = append(ids, msg.ID)
		}
	}
	sort.Strings(ids)
	return ids
}

// MarkRead flags the given held messages as read and returns the projects
// whose messages changed.
func (h *HeldSet) MarkRead(ids []string) map[string]struct{} {
	touched := make(map[string]struct{})
	for _, id := range ids {
		msg, ok := h.byID[id]
		if !ok || msg.Read {
			continue
		}
		msg.Read = true
		h.byID[id] = msg
		touched[msg.ProjectID] = struct{}{}
	}
	return touched
}

func isUnreadFor(msg domain.Message, viewerID string) bool {
	return !msg.Read && msg.SenderID != viewerID
}
