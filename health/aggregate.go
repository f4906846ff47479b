package health

import "sort"

// LastChecked holds per-context check times in unix milliseconds.
type LastChecked struct {
	Main    *int64        `json:"main,omitempty"`
	Workers map[int]int64 `json:"workers"`
}

// Abnormality describes one context that disagrees with the aggregated status.
type Abnormality struct {
	WorkerIndex int    `json:"workerIndex"`
	Status      Level  `json:"status"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
}

// AggregatedStatus is the status of one component across every context.
type AggregatedStatus struct {
	ComponentName string      `json:"componentName"`
	Status        Level       `json:"status"`
	LastChecked   LastChecked `json:"lastChecked"`
	LatestMessage string      `json:"latestMessage,omitempty"`
	Error         string      `json:"error,omitempty"`

	// Abnormalities is nil when every context reports the same status.
	Abnormalities map[string]Abnormality `json:"abnormalities,omitempty"`
}

// Aggregate merges "component@label" entries into one entry per component.
//
// The overall status is the highest-priority status present. Keys are
// visited in sorted order, so the result depends only on the map contents
// and never on the order in which responses arrived.
func Aggregate(flat map[string]Summary) map[string]AggregatedStatus {
	keys := make([]string, 0, len(flat))
	for k := range flat {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	groups := make(map[string][]string)
	var names []string
	for _, key := range keys {
		name, _ := SplitQualifiedName(key)
		if _, ok := groups[name]; !ok {
			names = append(names, name)
		}
		groups[name] = append(groups[name], key)
	}

	out := make(map[string]AggregatedStatus, len(groups))
	for _, name := range names {
		out[name] = aggregateGroup(name, groups[name], flat)
	}
	return out
}

func aggregateGroup(name string, keys []string, flat map[string]Summary) AggregatedStatus {
	agg := AggregatedStatus{
		ComponentName: name,
		Status:        LevelHealthy,
		LastChecked:   LastChecked{Workers: make(map[int]int64)},
	}

	seen := make(map[Level]struct{})
	var latest int64
	hasMessage := false

	for _, key := range keys {
		s := flat[key]
		_, label := SplitQualifiedName(key)

		if label == MainLabel {
			ts := s.LastChecked
			agg.LastChecked.Main = &ts
		} else if idx, ok := workerIndexFromLabel(label); ok {
			agg.LastChecked.Workers[idx] = s.LastChecked
		}

		seen[s.Status] = struct{}{}
		agg.Status = higher(agg.Status, s.Status)

		if s.Status != LevelHealthy && s.Message != "" {
			if !hasMessage || s.LastChecked >= latest {
				agg.LatestMessage = s.Message
				latest = s.LastChecked
				hasMessage = true
			}
		}
		if agg.Error == "" && s.Error != "" {
			agg.Error = s.Error
		}
	}

	if len(seen) > 1 {
		agg.Abnormalities = make(map[string]Abnormality)
		for _, key := range keys {
			s := flat[key]
			if s.Status == agg.Status {
				continue
			}
			agg.Abnormalities[key] = Abnormality{
				WorkerIndex: s.WorkerIndex,
				Status:      s.Status,
				Message:     s.Message,
				Error:       s.Error,
			}
		}
	}

	return agg
}
