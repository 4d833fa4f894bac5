package cortex

import (
	"context"
	"log/slog"
)

// Worker serializes cortex calls on a dedicated goroutine so the tick
// loop never blocks on the model. One request is in flight at a time;
// Submit while busy is refused rather than queued, because a stale
// thought is worse than no thought.
type Worker struct {
	client    Client
	logger    *slog.Logger
	requests  chan Request
	responses chan Response
}

func NewWorker(client Client, logger *slog.Logger) *Worker {
	return &Worker{
		client:    client,
		logger:    logger,
		requests:  make(chan Request, 1),
		responses: make(chan Response, 1),
	}
}

// Submit hands a request to the worker without blocking. It reports
// whether the worker was free to take it.
func (w *Worker) Submit(req Request) bool {
	select {
	case w.requests <- req:
		return true
	default:
		return false
	}
}

// Responses delivers results, including failed calls with Err set so the
// daemon can track degradation.
func (w *Worker) Responses() <-chan Response {
	return w.responses
}

func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-w.requests:
			resp, err := w.client.Complete(ctx, req)
			if err != nil {
				w.logger.Warn("cortex call failed", "error", err)
				resp = Response{Err: err}
			}
			select {
			case w.responses <- resp:
			case <-ctx.Done():
				return
			}
		}
	}
}
