package ports

import "time"

// MetricsCollector records service metrics
type MetricsCollector interface {
	IncPredictionsServed()
	SetUp(up bool)
	RecordEventPublished(topic string, err error)
	ObserveHTTPRequest(method, route string, status int, duration time.Duration)
}
