package alerts

import (
	"sync"
	"sync/atomic"

	"github.com/ShieldWorks/AdmitGate/pkg/domain/risk"
	"github.com/ShieldWorks/AdmitGate/pkg/infra/metrics"
	"github.com/sirupsen/logrus"
)

// Worker delivers out-of-band notifications for high-confidence threats
// without blocking the request path.
type Worker struct {
	logger   *logrus.Logger
	registry *metrics.Registry
	taskChan chan *risk.Assessment
	wg       sync.WaitGroup
	closed   atomic.Bool
}

func NewWorker(logger *logrus.Logger, registry *metrics.Registry) *Worker {
	return &Worker{
		logger:   logger,
		registry: registry,
		taskChan: make(chan *risk.Assessment, 256),
	}
}

func (w *Worker) StartWorkers(n int) {
	for i := 0; i < n; i++ {
		w.wg.Add(1)
		go func() {
			defer w.wg.Done()
			for a := range w.taskChan {
				w.emit(a)
			}
		}()
	}
}

func (w *Worker) Shutdown() {
	if w.closed.CompareAndSwap(false, true) {
		close(w.taskChan)
	}
	w.wg.Wait()
}

// ThreatDetected implements risk.Alerter. Alerts are dropped rather than
// blocking when the queue is full.
func (w *Worker) ThreatDetected(a *risk.Assessment) {
	if w.closed.Load() {
		return
	}
	select {
	case w.taskChan <- a:
	default:
		w.logger.Warn("threat alert queue full, dropping alert")
	}
}

func (w *Worker) emit(a *risk.Assessment) {
	w.registry.ThreatAlerts.Inc()
	w.logger.WithFields(logrus.Fields{
		"assessment_id": a.ID,
		"device_id":     a.DeviceID,
		"threat_score":  a.ThreatScore,
		"confidence":    a.Confidence,
		"action":        a.Action,
	}).Warn("high-confidence threat detected")
}
