package vehicletracker

import (
	"encoding/json"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/consumer"
	"github.com/travigo/inference/pkg/inference/state"
)

const rawQueueName = "inference-raw-queue"

const numConsumers = 4
const batchSize = 200

// Dispatcher takes decoded records off the queue
type Dispatcher interface {
	Dispatch(record state.RawRecord)
}

func StartConsumers(dispatcher Dispatcher, statsAddress string) error {
	redisConsumer := &consumer.RedisConsumer{
		QueueName:       rawQueueName,
		NumberConsumers: numConsumers,
		BatchSize:       batchSize,
		Timeout:         2 * time.Second,
		Consumer:        NewBatchConsumer(dispatcher),
		StatsAddress:    statsAddress,
	}

	return redisConsumer.Setup()
}

type BatchConsumer struct {
	dispatcher Dispatcher
}

func NewBatchConsumer(dispatcher Dispatcher) *BatchConsumer {
	return &BatchConsumer{dispatcher: dispatcher}
}

func (c *BatchConsumer) Consume(batch rmq.Deliveries) {
	for _, delivery := range batch {
		var report RawReport
		err := json.Unmarshal([]byte(delivery.Payload()), &report)
		if err == nil {
			err = report.Validate()
		}

		if err != nil {
			log.Error().Err(err).Msg("Failed to decode raw report")

			if err := delivery.Reject(); err != nil {
				log.Error().Err(err).Msg("Failed to reject raw report")
			}
			continue
		}

		c.dispatcher.Dispatch(report.Record())

		if err := delivery.Ack(); err != nil {
			log.Error().Err(err).Str("vehicle", report.VehicleRef).Msg("Failed to ack raw report")
		}
	}
}
