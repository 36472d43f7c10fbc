package vehicletracker

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/elastic_client"
	"github.com/travigo/inference/pkg/redis_client"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "vehicle-inference",
		Usage: "Infers journey phase and block position of vehicles from their location reports",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run an instance of the inference engine",
				Action: func(c *cli.Context) error {
					config := GetConfig()

					if err := elastic_client.Connect(false); err != nil {
						return err
					}
					if err := redis_client.Connect(); err != nil {
						return err
					}

					engine, err := LoadEngine(config)
					if err != nil {
						return err
					}

					queueSink, err := NewQueueSink(redis_client.QueueConnection)
					if err != nil {
						return err
					}

					manager := NewManager(engine, MultiSink{queueSink, NewCacheSink(), ElasticSink{}}, config.NumWorkers)

					if err := StartConsumers(manager, ":3333"); err != nil {
						return err
					}

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
					manager.Wait()

					if elastic_client.Client != nil {
						elastic_client.WaitUntilQueueEmpty()
					}

					return nil
				},
			},
			{
				Name:  "cleaner",
				Usage: "run the queue cleaner for the raw inference queue",
				Action: func(c *cli.Context) error {
					if err := redis_client.Connect(); err != nil {
						return err
					}

					StartCleaner()

					return nil
				},
			},
			{
				Name:      "replay",
				Usage:     "run a CSV trace of raw reports through the engine and print the inferred records",
				ArgsUsage: "<trace.csv>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "schedule",
						Usage: "GTFS zip to load the schedule from",
					},
					&cli.StringFlag{
						Name:  "context",
						Usage: "YAML context data file",
					},
					&cli.IntFlag{
						Name:  "particles",
						Usage: "particles per vehicle",
					},
					&cli.Uint64Flag{
						Name:  "seed",
						Usage: "resampling seed, 0 seeds from the clock",
					},
					&cli.BoolFlag{
						Name:  "debug",
						Usage: "keep journey phase summaries",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "print records as Go values instead of JSON lines",
					},
				},
				Action: func(c *cli.Context) error {
					if c.Args().Len() != 1 {
						return cli.Exit("replay needs exactly one trace file", 1)
					}

					config := GetConfig()
					if c.IsSet("schedule") {
						config.SchedulePath = c.String("schedule")
					}
					if c.IsSet("context") {
						config.ContextPath = c.String("context")
					}
					if c.IsSet("particles") {
						config.NumParticles = c.Int("particles")
					}
					if c.IsSet("seed") {
						config.Seed = c.Uint64("seed")
					}
					if c.IsSet("debug") {
						config.Debug = c.Bool("debug")
					}

					engine, err := LoadEngine(config)
					if err != nil {
						return err
					}

					reports, err := LoadReports(c.Args().First())
					if err != nil {
						return err
					}

					records, events := Replay(engine, reports, config.NumWorkers)
					for _, event := range events {
						log.Warn().Str("vehicle", event.VehicleRef).Str("type", string(event.Type)).Str("reason", event.FailReason).Msg("Inference event during replay")
					}

					return WriteRecords(c.App.Writer, records, c.Bool("pretty"))
				},
			},
		},
	}
}
