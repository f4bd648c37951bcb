package onewire

import (
	"encoding/json"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/KevinKickass/OpenLadderCore/internal/device"
)

// A sensor must be seen this many scans in a row before it is reported,
// and missed this many in a row before it disappears again. Bus searches
// are noisy, a single flaky read must not flap the app display.
const debounceCount = 3

type presence struct {
	hits     int
	misses   int
	reported bool
}

// Scanner enumerates the configured OneWire buses and debounces the
// discovered device addresses across scans.
type Scanner struct {
	mu     sync.Mutex
	driver device.OneWireIO
	seen   map[int]map[string]*presence
	logger *zap.Logger
}

func NewScanner(drv device.OneWireIO, logger *zap.Logger) *Scanner {
	return &Scanner{driver: drv, seen: make(map[int]map[string]*presence), logger: logger}
}

// Reset drops all debounce state, used when a new configuration applies.
func (s *Scanner) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = make(map[int]map[string]*presence)
}

type busReport struct {
	Pin       int      `json:"pin"`
	Addresses []string `json:"addresses"`
}

type searchReport struct {
	Pins []busReport `json:"pins"`
}

// Search scans every bus once, updates the debounce counters and returns
// the stable view as JSON. No configured buses yields an empty pin list.
func (s *Scanner) Search(buses []int) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	report := searchReport{Pins: make([]busReport, 0, len(buses))}
	for _, pin := range buses {
		s.scanBus(pin)
		report.Pins = append(report.Pins, busReport{Pin: pin, Addresses: s.stableAddresses(pin)})
	}
	return json.Marshal(report)
}

func (s *Scanner) scanBus(pin int) {
	known := s.seen[pin]
	if known == nil {
		known = make(map[string]*presence)
		s.seen[pin] = known
	}

	addrs, err := s.driver.SearchBus(pin)
	if err != nil {
		s.logger.Warn("one wire bus search failed", zap.Int("pin", pin), zap.Error(err))
		addrs = nil
	}

	found := make(map[string]bool, len(addrs))
	for _, addr := range addrs {
		found[addr] = true
		p := known[addr]
		if p == nil {
			p = &presence{}
			known[addr] = p
		}
		p.hits++
		p.misses = 0
		if p.hits >= debounceCount && !p.reported {
			p.reported = true
			s.logger.Info("one wire sensor discovered", zap.Int("pin", pin), zap.String("address", addr))
		}
	}
	for addr, p := range known {
		if found[addr] {
			continue
		}
		p.misses++
		p.hits = 0
		if p.misses >= debounceCount {
			if p.reported {
				s.logger.Info("one wire sensor lost", zap.Int("pin", pin), zap.String("address", addr))
			}
			delete(known, addr)
		}
	}
}

func (s *Scanner) stableAddresses(pin int) []string {
	addrs := make([]string, 0)
	for addr, p := range s.seen[pin] {
		if p.reported {
			addrs = append(addrs, addr)
		}
	}
	sort.Strings(addrs)
	return addrs
}
