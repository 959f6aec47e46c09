package blink

import (
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

func newTestLogger() (*logrus.Logger, *test.Hook) {
	log, hook := test.NewNullLogger()
	log.SetLevel(logrus.DebugLevel)
	return log, hook
}

// recorder is an Observer that keeps everything it is told.
type recorder struct {
	mu     sync.Mutex
	levels []bool
	edges  []uint64
}

func (r *recorder) Fired(level bool, firing uint64) {
	r.mu.Lock()
	r.levels = append(r.levels, level)
	r.mu.Unlock()
}

func (r *recorder) Edge(count uint64) {
	r.mu.Lock()
	r.edges = append(r.edges, count)
	r.mu.Unlock()
}

func (r *recorder) snapshot() ([]bool, []uint64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]bool(nil), r.levels...), append([]uint64(nil), r.edges...)
}

// messages returns the log messages in order.
func messages(hook interface{ AllEntries() []*logrus.Entry }) []string {
	var out []string
	for _, e := range hook.AllEntries() {
		out = append(out, e.Message)
	}
	return out
}
