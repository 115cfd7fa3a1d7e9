package notifier

import "github.com/prometheus/client_golang/prometheus"

var (
	processedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "messages_processed_total",
		Help:      "Number of Kafka messages successfully handled.",
	}, []string{"topic", "event_type"})

	handlerErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "handler_errors_total",
		Help:      "Number of handler errors grouped by topic and event type.",
	}, []string{"topic", "event_type"})

	decodeErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "decode_errors_total",
		Help:      "Number of decode failures per topic.",
	}, []string{"topic"})

	dispatchSuccessCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "dispatch_success_total",
		Help:      "Number of delivery tuples accepted by the Notification Dispatcher.",
	}, []string{"topic"})

	dispatchFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "dispatch_failures_total",
		Help:      "Number of delivery tuples the Notification Dispatcher rejected or timed out on.",
	}, []string{"topic"})

	dispatchSkippedCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "volunteer_service",
		Subsystem: "notifier",
		Name:      "dispatch_skipped_total",
		Help:      "Number of messages skipped because their payload did not decode.",
	}, []string{"topic"})
)

func init() {
	prometheus.MustRegister(processedCounter, handlerErrorCounter, decodeErrorCounter,
		dispatchSuccessCounter, dispatchFailureCounter, dispatchSkippedCounter)
}

func recordProcessed(msg Message) {
	processedCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordHandlerError(msg Message) {
	handlerErrorCounter.WithLabelValues(msg.Topic, msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	decodeErrorCounter.WithLabelValues(topic).Inc()
}

func recordDispatchSuccess(topic string) {
	dispatchSuccessCounter.WithLabelValues(topic).Inc()
}

func recordDispatchFailure(topic string) {
	dispatchFailureCounter.WithLabelValues(topic).Inc()
}

func recordDispatchSkipped(topic string) {
	dispatchSkippedCounter.WithLabelValues(topic).Inc()
}
