package metrics

import (
	"log"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// AppMetrics holds the application's metric instruments.
type AppMetrics struct {
	ItineraryRequestsTotal   metric.Int64Counter
	PipelineAttemptsTotal    metric.Int64Counter
	PipelineDurationSeconds  metric.Float64Histogram
	RetrievalDurationSeconds metric.Float64Histogram
	WeatherFallbacksTotal    metric.Int64Counter
	IngestedDocumentsTotal   metric.Int64Counter
	DbQueryDurationSeconds   metric.Float64Histogram
	DbQueryErrorsTotal       metric.Int64Counter
}

var (
	appMetrics *AppMetrics
	once       sync.Once
)

// InitAppMetrics creates the instruments once from the global MeterProvider.
// Call it after the provider is installed so the Prometheus exporter sees them.
func InitAppMetrics() {
	once.Do(func() {
		meter := otel.GetMeterProvider().Meter("ItineraryRAG")
		m := &AppMetrics{}

		m.ItineraryRequestsTotal = mustCounter(meter, "itinerary_requests_total",
			"Itinerary and chat requests by mode and outcome", "{request}")
		m.PipelineAttemptsTotal = mustCounter(meter, "itinerary_pipeline_attempts_total",
			"Pipeline attempts including retries", "{attempt}")
		m.PipelineDurationSeconds = mustHistogram(meter, "itinerary_pipeline_duration_seconds",
			"End to end pipeline duration in seconds")
		m.RetrievalDurationSeconds = mustHistogram(meter, "retrieval_duration_seconds",
			"Duration of retrieval plus generation in seconds")
		m.WeatherFallbacksTotal = mustCounter(meter, "weather_fallbacks_total",
			"Requests that continued without weather context", "{request}")
		m.IngestedDocumentsTotal = mustCounter(meter, "ingested_documents_total",
			"Documents written to the vector store", "{document}")
		m.DbQueryDurationSeconds = mustHistogram(meter, "db_query_duration_seconds",
			"Duration of database queries in seconds")
		m.DbQueryErrorsTotal = mustCounter(meter, "db_query_errors_total",
			"Total number of database query errors", "{error}")

		log.Println("Application metrics instruments initialized.")
		appMetrics = m
	})
}

// Get returns the instruments, creating them on first use.
func Get() *AppMetrics {
	InitAppMetrics()
	return appMetrics
}

func mustCounter(meter metric.Meter, name, desc, unit string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return c
}

func mustHistogram(meter metric.Meter, name, desc string) metric.Float64Histogram {
	h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
	if err != nil {
		log.Fatalf("Metrics: Failed to create %s: %v", name, err)
	}
	return h
}
