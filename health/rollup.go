package health

import (
	"sort"
	"strings"
)

// Roll-up messages.
const (
	MessageNotLoaded = "has not been loaded yet (may need a restart)"
	MessageAllLoaded = "All components loaded successfully"
)

// Detail is one non-healthy contributor to a GroupStatus.
type Detail struct {
	Status  Level  `json:"status"`
	Message string `json:"message,omitempty"`
}

// GroupStatus is the effective status of a component and its dotted
// sub-components.
type GroupStatus struct {
	Status      Level             `json:"status"`
	Message     string            `json:"message"`
	Details     map[string]Detail `json:"details,omitempty"`
	LastChecked LastChecked       `json:"lastChecked"`
}

// RollUp reports the effective status of base, combining the exact entry and
// every "base.*" entry of consolidated.
func RollUp(base string, consolidated map[string]AggregatedStatus) GroupStatus {
	var keys []string
	if _, ok := consolidated[base]; ok {
		keys = append(keys, base)
	}

	prefix := base + "."
	var subs []string
	for k := range consolidated {
		if strings.HasPrefix(k, prefix) {
			subs = append(subs, k)
		}
	}
	sort.Strings(subs)
	keys = append(keys, subs...)

	if len(keys) == 0 {
		return GroupStatus{
			Status:      LevelUnknown,
			Message:     MessageNotLoaded,
			LastChecked: LastChecked{Workers: map[int]int64{}},
		}
	}

	out := GroupStatus{
		Status:      LevelHealthy,
		LastChecked: consolidated[keys[0]].LastChecked,
	}
	for _, k := range keys {
		out.Status = higher(out.Status, consolidated[k].Status)
	}

	if out.Status == LevelHealthy {
		out.Message = MessageAllLoaded
		return out
	}

	out.Details = make(map[string]Detail)
	var parts []string
	for _, k := range keys {
		s := consolidated[k]
		if s.Status == LevelHealthy {
			continue
		}
		msg := s.LatestMessage
		if msg == "" {
			msg = string(s.Status)
		}
		parts = append(parts, k+": "+msg)
		out.Details[k] = Detail{Status: s.Status, Message: s.LatestMessage}
	}
	out.Message = strings.Join(parts, "; ")
	return out
}
