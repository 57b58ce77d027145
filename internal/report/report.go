// Package report is the text channel the roster core surfaces outcomes through.
package report

import (
	"sync"

	"go.uber.org/zap"
)

type Sink interface {
	Report(text string)
}

// Func adapts a plain function to a Sink.
type Func func(text string)

func (f Func) Report(text string) { f(text) }

type zapSink struct{ log *zap.Logger }

// Zap writes every report as an info line on the given logger.
func Zap(log *zap.Logger) Sink {
	if log == nil {
		log = zap.NewNop()
	}
	return zapSink{log: log}
}

func (s zapSink) Report(text string) { s.log.Info(text) }

// Tee fans a report out to several sinks in order.
func Tee(sinks ...Sink) Sink {
	return Func(func(text string) {
		for _, s := range sinks {
			if s != nil {
				s.Report(text)
			}
		}
	})
}

// Recorder keeps every report; safe for concurrent use.
type Recorder struct {
	mu    sync.Mutex
	lines []string
}

func (r *Recorder) Report(text string) {
	r.mu.Lock()
	r.lines = append(r.lines, text)
	r.mu.Unlock()
}

func (r *Recorder) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.lines...)
}
