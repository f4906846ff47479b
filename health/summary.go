package health

import (
	"strconv"
	"strings"
	"time"
)

// NoWorker is the worker index carried by summaries from the main context.
const NoWorker = -1

// Thread label formats used in qualified keys ("component@label").
const (
	MainLabel         = "main"
	WorkerLabelPrefix = "worker-"
)

// ThreadLabel returns the label for a worker index, or MainLabel for NoWorker.
func ThreadLabel(workerIndex int) string {
	if workerIndex < 0 {
		return MainLabel
	}
	return WorkerLabelPrefix + strconv.Itoa(workerIndex)
}

// QualifiedName joins a component name and a thread label.
func QualifiedName(component, label string) string {
	return component + "@" + label
}

// SplitQualifiedName splits at the last '@'. Labels never contain '@', so
// component names are free to.
func SplitQualifiedName(key string) (component, label string) {
	i := strings.LastIndexByte(key, '@')
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+1:]
}

// ParseThreadLabel is the inverse of ThreadLabel.
func ParseThreadLabel(label string) (workerIndex int, ok bool) {
	if label == MainLabel {
		return NoWorker, true
	}
	return workerIndexFromLabel(label)
}

// workerIndexFromLabel parses "worker-N".
func workerIndexFromLabel(label string) (int, bool) {
	rest, ok := strings.CutPrefix(label, WorkerLabelPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Summary is the serialized form of a ComponentStatus sent between contexts.
type Summary struct {
	Status      Level  `json:"status"`
	Message     string `json:"message,omitempty"`
	Error       string `json:"error,omitempty"`
	LastChecked int64  `json:"lastChecked"`
	WorkerIndex int    `json:"workerIndex"`
}

// NamedSummary pairs a component name with its summary.
type NamedSummary struct {
	Name    string
	Summary Summary
}

// Summary projects a status for the given worker index.
func (s ComponentStatus) Summary(workerIndex int) Summary {
	out := Summary{
		Status:      s.Status,
		Message:     s.Message,
		LastChecked: s.LastChecked.UnixMilli(),
		WorkerIndex: workerIndex,
	}
	if s.Err != nil {
		out.Error = s.Err.Error()
	}
	return out
}

// LastCheckedTime converts the wire timestamp back to a time.Time.
func (s Summary) LastCheckedTime() time.Time {
	return time.UnixMilli(s.LastChecked)
}
