package queue

import (
	"context"
	"hash/fnv"

	"github.com/rs/zerolog"

	"github.com/crudkit/identity-api/internal/core/domain"
	"github.com/crudkit/identity-api/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes tasks to a fixed set of workers by hashing the task id,
// so a task's attempts always run on the same worker.
type Dispatcher struct {
	workers   []chan ports.TaskInput
	processor ports.TaskProcessor
	log       zerolog.Logger
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, processor ports.TaskProcessor, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers:   make([]chan ports.TaskInput, numWorkers),
		processor: processor,
		log:       log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.TaskInput, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		go d.runWorker(ctx, i, ch)
	}
}

// Enqueue hands a task to its worker. It never blocks: a full worker buffer
// yields domain.ErrQueueFull.
func (d *Dispatcher) Enqueue(task ports.TaskInput) error {
	select {
	case d.workers[d.shardIndex(task.ID)] <- task:
		return nil
	default:
		return domain.ErrQueueFull
	}
}

// shardIndex maps a task id deterministically to a worker index.
func (d *Dispatcher) shardIndex(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.TaskInput) {
	for {
		select {
		case <-ctx.Done():
			return
		case task, ok := <-ch:
			if !ok {
				return
			}
			if err := d.processor.Process(ctx, task); err != nil {
				d.log.Error().Err(err).
					Str("task_id", task.ID).
					Str("task", task.Name).
					Int("worker_id", id).
					Msg("task failed")
			}
		}
	}
}
