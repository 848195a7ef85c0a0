package log

import (
	"fmt"
	"sync"

	"github.com/open-finance/sagaflow/log"
)

//NewNilLogger is used mostly in testing, records entries and prints nothing
func NewNilLogger() *testLogger {
	return &testLogger{entriesStore: &entriesStore{}}
}

type entriesStore struct {
	mu      sync.Mutex
	entries []entry
}

func (s *entriesStore) append(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.entries = append(s.entries, e)
}

func (s *entriesStore) snapshot() []entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	res := make([]entry, len(s.entries))
	copy(res, s.entries)

	return res
}

type testLogger struct {
	level        log.Level
	fields       log.Fields
	entriesStore *entriesStore
}

type entry struct {
	Msg   string
	Level log.Level
}

func (n *testLogger) Log(level log.Level, v ...interface{}) {
	n.entriesStore.append(entry{Msg: fmt.Sprint(v...), Level: level})
}

func (n *testLogger) Logf(level log.Level, template string, args ...interface{}) {
	n.entriesStore.append(entry{Msg: fmt.Sprintf(template, args...), Level: level})
}

func (n *testLogger) SetLevel(level log.Level) {
	n.level = level
}

func (n *testLogger) WithFields(fields log.Fields) log.Logger {
	mergedFields := make(log.Fields)

	for k, v := range n.fields {
		mergedFields[k] = v
	}

	for k, v := range fields {
		mergedFields[k] = v
	}

	return &testLogger{
		entriesStore: n.entriesStore,
		level:        n.level,
		fields:       mergedFields,
	}
}

func (n testLogger) Entries() []entry {
	return n.entriesStore.snapshot()
}

func (n testLogger) Messages() []string {
	entries := n.entriesStore.snapshot()

	r := make([]string, len(entries))
	for i := range entries {
		r[i] = entries[i].Msg
	}

	return r
}

func (n testLogger) LastMessage() string {
	entries := n.entriesStore.snapshot()

	if len(entries) > 0 {
		return entries[len(entries)-1].Msg
	}

	return ""
}

func (n *testLogger) Clear() {
	n.entriesStore.mu.Lock()
	defer n.entriesStore.mu.Unlock()

	n.entriesStore.entries = make([]entry, 0)
	n.level = log.InfoLevel
	n.fields = nil
}
