// Package forecast produces the demo forecast records served by the catalog
// endpoint.
package forecast

import (
	"math/rand"
	"sync"
	"time"
)

// Summaries is the fixed vocabulary a record's summary is drawn from.
var Summaries = [...]string{
	"Freezing", "Bracing", "Chilly", "Cool", "Mild",
	"Warm", "Balmy", "Hot", "Sweltering", "Scorching",
}

// Temperatures are uniform in [-20, 55).
const (
	temperatureMin  = -20
	temperatureSpan = 75
)

// Date is a calendar date serialized as "2006-01-02".
type Date struct {
	time.Time
}

// MarshalJSON renders the date without a time component.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format("2006-01-02") + `"`), nil
}

// UnmarshalJSON parses a "2006-01-02" date.
func (d *Date) UnmarshalJSON(data []byte) error {
	parsed, errParse := time.Parse(`"2006-01-02"`, string(data))
	if errParse != nil {
		return errParse
	}
	d.Time = parsed
	return nil
}

// Record is one forecast entry.
type Record struct {
	Date         Date   `json:"date"`
	TemperatureC int    `json:"temperatureC"`
	Summary      string `json:"summary"`
}

// Source generates records from an injected random source, so tests can pin
// the sequence. One Source is shared by all requests; *rand.Rand is not safe
// for concurrent use, so every draw goes through mu.
type Source struct {
	mu    sync.Mutex
	rng   *rand.Rand
	nowFn func() time.Time
}

// NewSource constructs a Source with default dependencies when nil.
func NewSource(rng *rand.Rand, nowFn func() time.Time) *Source {
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if nowFn == nil {
		nowFn = time.Now
	}
	return &Source{rng: rng, nowFn: nowFn}
}

// Next returns n records for the days following today.
func (s *Source) Next(n int) []Record {
	today := s.nowFn()
	records := make([]Record, 0, n)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 1; i <= n; i++ {
		records = append(records, Record{
			Date:         Date{today.AddDate(0, 0, i)},
			TemperatureC: temperatureMin + s.rng.Intn(temperatureSpan),
			Summary:      Summaries[s.rng.Intn(len(Summaries))],
		})
	}
	return records
}
