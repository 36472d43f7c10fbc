package vehicletracker

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"github.com/travigo/inference/pkg/inference"
	"github.com/travigo/inference/pkg/inference/state"
	"github.com/travigo/inference/pkg/particlefilter"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// InstanceFactory creates the inference instance of a newly seen vehicle
type InstanceFactory interface {
	NewInstance(vehicleRef string) *inference.VehicleInferenceInstance
}

type vehicleWorker struct {
	instance *inference.VehicleInferenceInstance

	// pending is ordered by timestamp
	pending []state.RawRecord
	running bool

	lastHandled time.Time
}

// Manager runs every vehicle on a bounded worker pool. Records of one vehicle
// are handled one at a time in timestamp order, different vehicles in
// parallel.
type Manager struct {
	instances InstanceFactory
	sink      Sink

	pool *pool.Pool

	mutex    sync.Mutex
	vehicles map[string]*vehicleWorker
}

func NewManager(instances InstanceFactory, sink Sink, numWorkers int) *Manager {
	return &Manager{
		instances: instances,
		sink:      sink,
		pool:      pool.New().WithMaxGoroutines(numWorkers),
		vehicles:  map[string]*vehicleWorker{},
	}
}

// Dispatch queues a record for its vehicle. It blocks while every worker is
// busy.
func (m *Manager) Dispatch(record state.RawRecord) {
	m.mutex.Lock()

	worker, exists := m.vehicles[record.VehicleRef]
	if !exists {
		worker = &vehicleWorker{instance: m.instances.NewInstance(record.VehicleRef)}
		m.vehicles[record.VehicleRef] = worker
	}

	if !worker.lastHandled.IsZero() && !record.Timestamp.After(worker.lastHandled) {
		m.mutex.Unlock()

		log.Warn().
			Str("vehicle", record.VehicleRef).
			Time("timestamp", record.Timestamp).
			Time("lastHandled", worker.lastHandled).
			Msg("Dropping out of order record")
		return
	}

	position, duplicate := slices.BinarySearchFunc(worker.pending, record.Timestamp, func(pending state.RawRecord, timestamp time.Time) int {
		return pending.Timestamp.Compare(timestamp)
	})
	if duplicate {
		m.mutex.Unlock()

		log.Debug().Str("vehicle", record.VehicleRef).Time("timestamp", record.Timestamp).Msg("Dropping duplicate record")
		return
	}
	worker.pending = slices.Insert(worker.pending, position, record)

	if worker.running {
		m.mutex.Unlock()
		return
	}
	worker.running = true
	m.mutex.Unlock()

	m.pool.Go(func() {
		m.drain(worker)
	})
}

func (m *Manager) drain(worker *vehicleWorker) {
	for {
		m.mutex.Lock()
		if len(worker.pending) == 0 {
			worker.running = false
			m.mutex.Unlock()
			return
		}

		record := worker.pending[0]
		worker.pending = worker.pending[1:]
		m.mutex.Unlock()

		m.handle(worker, record)

		m.mutex.Lock()
		worker.lastHandled = record.Timestamp
		m.mutex.Unlock()
	}
}

func (m *Manager) handle(worker *vehicleWorker, record state.RawRecord) {
	var inferred *inference.InferredLocationRecord
	var err error

	var catcher panics.Catcher
	catcher.Try(func() {
		inferred, err = worker.instance.Handle(record)
	})
	if recovered := catcher.Recovered(); recovered != nil {
		err = fmt.Errorf("vehicle worker panicked: %w", recovered.AsError())
	}

	switch {
	case err == nil:
		m.sink.Publish(inferred)

		if inferred.Recovered {
			m.sink.Event(&InferenceElasticEvent{
				Timestamp:       time.Now(),
				Type:            EventRecovered,
				VehicleRef:      record.VehicleRef,
				RecordTimestamp: record.Timestamp,
				Phase:           string(inferred.Phase),
				BlockRef:        inferred.BlockRef,
			})
		}
	case errors.Is(err, inference.ErrStaleRecord):
		log.Warn().Err(err).Str("vehicle", record.VehicleRef).Msg("Dropping stale record")
	default:
		if !inference.IsInvariantError(err) && !errors.Is(err, particlefilter.ErrEmptyProposal) && catcher.Recovered() == nil {
			log.Error().Err(err).Str("vehicle", record.VehicleRef).Time("timestamp", record.Timestamp).Msg("Failed to handle record")
			return
		}

		log.Error().Err(err).Str("vehicle", record.VehicleRef).Time("timestamp", record.Timestamp).Msg("Vehicle inference failed, resetting vehicle")

		worker.instance.Reset()

		m.sink.Event(&InferenceElasticEvent{
			Timestamp:       time.Now(),
			Type:            EventFailed,
			FailReason:      err.Error(),
			VehicleRef:      record.VehicleRef,
			RecordTimestamp: record.Timestamp,
		})
	}
}

// Vehicles lists the vehicles seen so far
func (m *Manager) Vehicles() []string {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	vehicleRefs := maps.Keys(m.vehicles)
	slices.Sort(vehicleRefs)

	return vehicleRefs
}

// Wait blocks until every dispatched record has been handled. The manager
// must not be used afterwards.
func (m *Manager) Wait() {
	m.pool.Wait()
}
