package worker

import "go.uber.org/zap"

type Worker struct {
	id         int
	pool       *jobChannelPool
	jobChannel chan Job
	logger     *zap.Logger
}

func NewWorker(id int, pool *jobChannelPool, logger *zap.Logger) *Worker {
	return &Worker{
		id:         id,
		pool:       pool,
		jobChannel: make(chan Job),
		logger:     logger,
	}
}

func (w *Worker) Start() {
	go func() {
		for job := range w.jobChannel {
			if job.stop {
				w.pool.retire(w.jobChannel)
				w.logger.Debug("worker retired", zap.Int("worker", w.id))
				return
			}
			w.execute(job)
			if !w.pool.Release(w.jobChannel) {
				w.pool.retire(w.jobChannel)
				return
			}
		}
	}()
}

func (w *Worker) execute(job Job) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Error("job panicked",
				zap.String("job", job.Name),
				zap.String("workspace", job.WorkspaceID),
				zap.Any("panic", r))
		}
	}()
	job.Run()
}
