package bus

import (
	"time"

	"github.com/zeusync/rigidbody/internal/core/observability/log"
)

// LogObserver reports failed and slow deliveries. Successful deliveries
// are not logged.
type LogObserver struct {
	logger log.Log
	slow   time.Duration
}

// NewLogObserver logs deliveries slower than slow at Warn. A zero slow
// disables the latency check.
func NewLogObserver(logger log.Log, slow time.Duration) *LogObserver {
	return &LogObserver{
		logger: log.OrNop(logger).With(log.String("component", "event_bus")),
		slow:   slow,
	}
}

func (o *LogObserver) OnPublish(string, Event) {}

func (o *LogObserver) OnDelivered(topic string, event Event, handlers int, err error, took time.Duration) {
	if err != nil {
		o.logger.Warn("event handlers failed",
			log.String("topic", topic),
			log.String("type", event.Type()),
			log.Uint64("tick", event.Tick()),
			log.Int("handlers", handlers),
			log.Error(err))
	}
	if o.slow > 0 && took > o.slow {
		o.logger.Warn("slow event delivery",
			log.String("topic", topic),
			log.String("type", event.Type()),
			log.Duration("took", took),
			log.Int("handlers", handlers))
	}
}
