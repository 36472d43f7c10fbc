package redis_client

import (
	"context"
	"strconv"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/util"
)

var Client *redis.Client
var QueueConnection rmq.Connection

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

const connectRetries = 5

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["TRAVIGO_REDIS_ADDRESS"] != "" {
		address = env["TRAVIGO_REDIS_ADDRESS"]
	}

	if env["TRAVIGO_REDIS_PASSWORD"] != "" {
		password = env["TRAVIGO_REDIS_PASSWORD"]
	}

	if env["TRAVIGO_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["TRAVIGO_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	Client = redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	// Redis often comes up alongside the service so give it a moment
	ping := func() error {
		return Client.Ping(context.Background()).Err()
	}
	notify := func(err error, wait time.Duration) {
		log.Warn().Err(err).Str("address", address).Dur("wait", wait).Msg("Redis not ready, retrying")
	}
	if err := backoff.RetryNotify(ping, backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), notify); err != nil {
		return err
	}

	var err error
	QueueConnection, err = rmq.OpenConnectionWithRedisClient("travigo-inference", Client, nil)
	if err != nil {
		return err
	}

	log.Info().Str("address", address).Int("database", database).Msg("Redis client setup")

	return nil
}
