package massaction

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/gocrm-io/gocrm-ce/internal/models"
	"github.com/gocrm-io/gocrm-ce/internal/repository"
)

type workStore interface {
	ClaimNextQueued(ctx context.Context) (*models.MassActionRecord, error)
	UpdateProcessedCount(ctx context.Context, id string, processedCount int) error
	Finish(ctx context.Context, id string, status string, processedCount int) error
}

// Notifier tells a user their deferred action finished.
type Notifier interface {
	NotifyFinished(ctx context.Context, record *models.MassActionRecord) error
}

// statusMirror shadows record progress into the status cache so pollers
// don't hit the database. Best-effort.
type statusMirror interface {
	SetMassActionStatus(ctx context.Context, id, status string, processedCount int)
}

// progressInterval is how many records accumulate between persisted
// progress updates on a Running record.
const progressInterval = 10

// Worker drains queued mass-action records. Claiming is atomic, so multiple
// workers may run concurrently without double-executing a record.
type Worker struct {
	records  workStore
	registry *Registry
	notifier Notifier
	status   statusMirror
	logger   *log.Logger

	kicks chan struct{}
}

func NewWorker(records workStore, registry *Registry, notifier Notifier, status statusMirror, logger *log.Logger) *Worker {
	return &Worker{
		records:  records,
		registry: registry,
		notifier: notifier,
		status:   status,
		logger:   logger,
		kicks:    make(chan struct{}, 1),
	}
}

// Kick wakes the worker outside its regular schedule. Non-blocking.
func (w *Worker) Kick() {
	select {
	case w.kicks <- struct{}{}:
	default:
	}
}

// Kicks exposes the wake-up channel for the scheduler loop.
func (w *Worker) Kicks() <-chan struct{} { return w.kicks }

// ProcessNext claims and runs one queued record. Returns false when the queue
// is empty. An action failure marks the record Failed and is not returned as
// an error; the queue keeps draining.
func (w *Worker) ProcessNext(ctx context.Context) (bool, error) {
	record, err := w.records.ClaimNextQueued(ctx)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	w.mirror(ctx, record.ID, models.MassActionStatusRunning, record.ProcessedCount)

	result, runErr := w.run(ctx, record)
	if runErr != nil {
		w.logf("massaction worker: record %s failed: %v", record.ID, runErr)
		record.Status = models.MassActionStatusFailed
	} else {
		record.Status = models.MassActionStatusComplete
		record.ProcessedCount = result.Count
	}

	if err := w.records.Finish(ctx, record.ID, record.Status, record.ProcessedCount); err != nil {
		return true, err
	}
	w.mirror(ctx, record.ID, record.Status, record.ProcessedCount)

	if record.NotifyOnFinish && w.notifier != nil {
		if err := w.notifier.NotifyFinished(ctx, record); err != nil {
			w.logf("massaction worker: notification for %s failed: %v", record.ID, err)
		}
	}
	return true, nil
}

func (w *Worker) run(ctx context.Context, record *models.MassActionRecord) (*Result, error) {
	params, err := DecodeParams(record.Params)
	if err != nil {
		return nil, err
	}
	action, err := w.registry.Resolve(record.Action, record.EntityType)
	if err != nil {
		return nil, err
	}
	return action.Process(ctx, record.EntityType, params, json.RawMessage(record.Data), w.progressReporter(ctx, record.ID))
}

// progressReporter persists the running count every progressInterval records
// so status polls see a Running record advance. A failed write only costs
// freshness.
func (w *Worker) progressReporter(ctx context.Context, id string) ProgressFunc {
	return func(processed int) {
		if processed == 0 || processed%progressInterval != 0 {
			return
		}
		if err := w.records.UpdateProcessedCount(ctx, id, processed); err != nil {
			w.logf("massaction worker: progress update for %s failed: %v", id, err)
			return
		}
		w.mirror(ctx, id, models.MassActionStatusRunning, processed)
	}
}

func (w *Worker) mirror(ctx context.Context, id, status string, processedCount int) {
	if w.status == nil {
		return
	}
	w.status.SetMassActionStatus(ctx, id, status, processedCount)
}

// Drain processes queued records until the queue is empty or the context is
// done. Returns how many records were handled.
func (w *Worker) Drain(ctx context.Context) int {
	handled := 0
	for {
		if ctx.Err() != nil {
			return handled
		}
		ok, err := w.ProcessNext(ctx)
		if err != nil {
			w.logf("massaction worker: %v", err)
			return handled
		}
		if !ok {
			return handled
		}
		handled++
	}
}

func (w *Worker) logf(format string, args ...any) {
	if w == nil || w.logger == nil {
		return
	}
	w.logger.Printf(format, args...)
}

// LogNotifier is the default Notifier: it only records the completion in the
// application log. A mail- or websocket-backed notifier can replace it.
type LogNotifier struct {
	Logger *log.Logger
}

func (n *LogNotifier) NotifyFinished(_ context.Context, record *models.MassActionRecord) error {
	if n.Logger != nil {
		n.Logger.Printf("massaction: %s finished with status %s (%d processed) for user %s",
			record.ID, record.Status, record.ProcessedCount, record.CreatedBy)
	}
	return nil
}
