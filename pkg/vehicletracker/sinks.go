package vehicletracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/eko/gocache/lib/v4/cache"
	"github.com/eko/gocache/lib/v4/store"
	redisstore "github.com/eko/gocache/store/redis/v4"
	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/elastic_client"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/redis_client"
)

const outputQueueName = "inference-output-queue"
const lastRecordExpiry = 30 * time.Minute

// Sink receives the output of the vehicle workers. Implementations are called
// from many workers at once.
type Sink interface {
	Publish(record *inference.InferredLocationRecord)
	Event(event *InferenceElasticEvent)
}

// MultiSink fans out to every sink in order
type MultiSink []Sink

func (s MultiSink) Publish(record *inference.InferredLocationRecord) {
	for _, sink := range s {
		sink.Publish(record)
	}
}

func (s MultiSink) Event(event *InferenceElasticEvent) {
	for _, sink := range s {
		sink.Event(event)
	}
}

// QueueSink publishes every inferred record as JSON on the output queue
type QueueSink struct {
	queue rmq.Queue
}

func NewQueueSink(connection rmq.Connection) (*QueueSink, error) {
	queue, err := connection.OpenQueue(outputQueueName)
	if err != nil {
		return nil, err
	}

	return &QueueSink{queue: queue}, nil
}

func (s *QueueSink) Publish(record *inference.InferredLocationRecord) {
	body, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleRef).Msg("Failed to encode inferred record")
		return
	}

	if err := s.queue.PublishBytes(body); err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleRef).Msg("Failed to publish inferred record")
	}
}

func (s *QueueSink) Event(*InferenceElasticEvent) {}

// CacheSink keeps the last inferred record of each vehicle in redis
type CacheSink struct {
	cache *cache.Cache[string]
}

func NewCacheSink() *CacheSink {
	redisStore := redisstore.NewRedis(redis_client.Client, store.WithExpiration(lastRecordExpiry))

	return &CacheSink{cache: cache.New[string](redisStore)}
}

func lastRecordKey(vehicleRef string) string {
	return fmt.Sprintf("inference/vehicle/%s", vehicleRef)
}

func (s *CacheSink) Publish(record *inference.InferredLocationRecord) {
	body, err := json.Marshal(record)
	if err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleRef).Msg("Failed to encode inferred record")
		return
	}

	if err := s.cache.Set(context.Background(), lastRecordKey(record.VehicleRef), string(body)); err != nil {
		log.Error().Err(err).Str("vehicle", record.VehicleRef).Msg("Failed to cache inferred record")
	}
}

func (s *CacheSink) LastRecord(ctx context.Context, vehicleRef string) (*inference.InferredLocationRecord, error) {
	body, err := s.cache.Get(ctx, lastRecordKey(vehicleRef))
	if err != nil {
		return nil, err
	}

	var record *inference.InferredLocationRecord
	if err := json.Unmarshal([]byte(body), &record); err != nil {
		return nil, err
	}

	return record, nil
}

func (s *CacheSink) Event(*InferenceElasticEvent) {}

// ElasticSink indexes inference events, records are not indexed
type ElasticSink struct{}

func (s ElasticSink) Publish(*inference.InferredLocationRecord) {}

func (s ElasticSink) Event(event *InferenceElasticEvent) {
	body, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode inference event")
		return
	}

	elastic_client.IndexRequest(eventsIndexName(event.Timestamp), bytes.NewReader(body))
}

func eventsIndexName(at time.Time) string {
	yearNumber, weekNumber := at.ISOWeek()
	return fmt.Sprintf("inference-events-%d-%d", yearNumber, weekNumber)
}
