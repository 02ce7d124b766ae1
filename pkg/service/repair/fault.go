// Copyright (C) 2017 ScyllaDB

package repair

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/scylladb/go-log"
	"github.com/scylladb/go-set/strset"
)

// FaultCode identifies a kind of fault.
type FaultCode string

// FaultCode enumeration.
const (
	FaultJobFailed     FaultCode = "REPAIR_JOB_FAILED"
	FaultRepairWarning FaultCode = "REPAIR_WARNING"
	FaultRepairError   FaultCode = "REPAIR_ERROR"
)

// FaultReporter is notified when a fault appears and when it is gone.
// Data identifies the source of a fault, a fault is raised and ceased with
// the same data.
type FaultReporter interface {
	Raise(code FaultCode, data map[string]string)
	Cease(code FaultCode, data map[string]string)
}

// LogFaultReporter logs faults, repeated raises and ceases of the same fault
// are logged once.
type LogFaultReporter struct {
	logger log.Logger

	mu     sync.Mutex
	active *strset.Set
}

var _ FaultReporter = &LogFaultReporter{}

// NewLogFaultReporter returns a reporter logging to logger.
func NewLogFaultReporter(logger log.Logger) *LogFaultReporter {
	return &LogFaultReporter{
		logger: logger,
		active: strset.New(),
	}
}

// Raise implements FaultReporter.
func (r *LogFaultReporter) Raise(code FaultCode, data map[string]string) {
	k := faultKey(code, data)

	r.mu.Lock()
	raised := !r.active.Has(k)
	r.active.Add(k)
	r.mu.Unlock()

	if raised {
		r.logger.Error(context.Background(), "Fault raised", faultFields(code, data)...)
	}
}

// Cease implements FaultReporter.
func (r *LogFaultReporter) Cease(code FaultCode, data map[string]string) {
	k := faultKey(code, data)

	r.mu.Lock()
	ceased := r.active.Has(k)
	r.active.Remove(k)
	r.mu.Unlock()

	if ceased {
		r.logger.Info(context.Background(), "Fault ceased", faultFields(code, data)...)
	}
}

// Active returns keys of raised faults in sorted order.
func (r *LogFaultReporter) Active() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := r.active.List()
	sort.Strings(out)
	return out
}

func faultKey(code FaultCode, data map[string]string) string {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(string(code))
	for _, k := range keys {
		b.WriteString(" ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(data[k])
	}
	return b.String()
}

func faultFields(code FaultCode, data map[string]string) []interface{} {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := []interface{}{"code", code}
	for _, k := range keys {
		out = append(out, k, data[k])
	}
	return out
}
