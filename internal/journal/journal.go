// Package journal keeps an append-only audit trail of the commands an authority applied.
//
// The trail is write-only: nothing reads it back into a roster, so a new session always starts
// empty.
package journal

import (
	"context"
	"time"

	"go.uber.org/zap"
)

type Entry struct {
	Session     string
	Version     int64
	Operation   string
	OpCode      int
	TargetID    int
	TargetValue int
	Err         string
	AppliedAt   time.Time
}

type Store interface {
	Save(ctx context.Context, entries []Entry) error
	Close() error
}

// Recorder is what the executor sees; Record must never block it.
type Recorder interface {
	Record(e Entry)
}

type nopRecorder struct{}

func (nopRecorder) Record(Entry) {}

// Nop discards every entry.
var Nop Recorder = nopRecorder{}

type Writer struct {
	store      Store
	in         chan Entry
	batchSize  int
	flushEvery time.Duration
	log        *zap.Logger
}

func NewWriter(store Store, log *zap.Logger) *Writer {
	if log == nil {
		log = zap.NewNop()
	}
	return &Writer{
		store:      store,
		in:         make(chan Entry, 1024),
		batchSize:  64,
		flushEvery: time.Second,
		log:        log.Named("journal"),
	}
}

func (w *Writer) Record(e Entry) {
	select {
	case w.in <- e:
	default:
		w.log.Warn("journal buffer full, dropping entry",
			zap.String("session", e.Session), zap.Int64("version", e.Version))
	}
}

// Run batches entries into the store until ctx is cancelled, then flushes what is left.
func (w *Writer) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.flushEvery)
	defer ticker.Stop()

	batch := make([]Entry, 0, w.batchSize)
	flush := func(ctx context.Context) {
		if len(batch) == 0 {
			return
		}
		if err := w.store.Save(ctx, batch); err != nil {
			w.log.Error("journal flush failed", zap.Int("entries", len(batch)), zap.Error(err))
		}
		batch = batch[:0]
	}

	for {
		select {
		case <-ctx.Done():
		drain:
			for {
				select {
				case e := <-w.in:
					batch = append(batch, e)
				default:
					break drain
				}
			}
			final, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			flush(final)
			cancel()
			return nil

		case e := <-w.in:
			batch = append(batch, e)
			if len(batch) >= w.batchSize {
				flush(ctx)
			}

		case <-ticker.C:
			flush(ctx)
		}
	}
}
