package vehicletracker

import (
	"cmp"
	"encoding/json"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/gocarina/gocsv"
	"github.com/kr/pretty"
	"github.com/rs/zerolog/log"
	"github.com/travigo/inference/pkg/inference"
	"golang.org/x/exp/slices"
)

func LoadReports(path string) ([]RawReport, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return ReadReports(file)
}

// ReadReports parses a CSV trace of raw reports, ordered by timestamp
func ReadReports(reader io.Reader) ([]RawReport, error) {
	var reports []RawReport
	if err := gocsv.Unmarshal(reader, &reports); err != nil {
		return nil, err
	}

	slices.SortStableFunc(reports, func(a RawReport, b RawReport) int {
		return a.Timestamp.Compare(b.Timestamp)
	})

	return reports, nil
}

type collectingSink struct {
	mutex sync.Mutex

	records []*inference.InferredLocationRecord
	events  []*InferenceElasticEvent
}

func (s *collectingSink) Publish(record *inference.InferredLocationRecord) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.records = append(s.records, record)
}

func (s *collectingSink) Event(event *InferenceElasticEvent) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.events = append(s.events, event)
}

// Replay runs a trace through a fresh manager and returns the inferred
// records ordered by record time then vehicle
func Replay(instances InstanceFactory, reports []RawReport, numWorkers int) ([]*inference.InferredLocationRecord, []*InferenceElasticEvent) {
	sink := &collectingSink{}
	manager := NewManager(instances, sink, numWorkers)

	for _, report := range reports {
		if err := report.Validate(); err != nil {
			log.Warn().Err(err).Msg("Skipping replay report")
			continue
		}

		manager.Dispatch(report.Record())
	}
	manager.Wait()

	slices.SortStableFunc(sink.records, func(a *inference.InferredLocationRecord, b *inference.InferredLocationRecord) int {
		return cmp.Or(
			a.RecordTimestamp.Compare(b.RecordTimestamp),
			strings.Compare(a.VehicleRef, b.VehicleRef),
		)
	})

	return sink.records, sink.events
}

// WriteRecords prints records as JSON lines, or as Go values when pretty
func WriteRecords(writer io.Writer, records []*inference.InferredLocationRecord, prettyPrint bool) error {
	encoder := json.NewEncoder(writer)

	for _, record := range records {
		if prettyPrint {
			if _, err := pretty.Fprintf(writer, "%# v\n", record); err != nil {
				return err
			}
			continue
		}

		if err := encoder.Encode(record); err != nil {
			return err
		}
	}

	return nil
}
