// Package store keeps the latest validated observation per weather station
// and maps region names to their reporting stations. It is the in-process
// source of current conditions for query execution; the ingest loop writes
// into it as station observations arrive.
package store

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/emberwatch/fire-danger-service/internal/domain"
)

// LatestStore is a concurrent map of station ID to the most recent
// observation. Writers replace only with newer observations; stale or
// out-of-order messages are dropped.
type LatestStore struct {
	mu      sync.RWMutex
	latest  map[string]domain.WeatherObservation
	regions map[string][]string // lowercase region name -> station IDs
}

// NewLatestStore creates an empty store with the given region mapping.
// Region names are matched case-insensitively.
func NewLatestStore(regions map[string][]string) *LatestStore {
	normalized := make(map[string][]string, len(regions))
	for name, stations := range regions {
		normalized[strings.ToLower(strings.TrimSpace(name))] = stations
	}
	return &LatestStore{
		latest:  make(map[string]domain.WeatherObservation),
		regions: normalized,
	}
}

// Record stores an observation as the latest for its station. It returns
// true when the observation replaced the stored one, false when it was
// older than what is already held.
func (s *LatestStore) Record(obs domain.WeatherObservation) bool {
	if obs.StationID == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.latest[obs.StationID]; ok && !obs.Timestamp.After(prev.Timestamp) {
		return false
	}
	s.latest[obs.StationID] = obs
	return true
}

// Latest returns the most recent observation for a station.
func (s *LatestStore) Latest(stationID string) (domain.WeatherObservation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obs, ok := s.latest[stationID]
	return obs, ok
}

// Stations returns the station IDs currently holding an observation.
func (s *LatestStore) Stations() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.latest))
	for id := range s.latest {
		ids = append(ids, id)
	}
	return ids
}

// Conditions resolves a subject to its current conditions. A subject may be
// a station ID, a configured region name, or "local area", which resolves
// to the most recently reporting station.
func (s *LatestStore) Conditions(_ context.Context, subject string) (domain.WeatherObservation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key := strings.ToLower(strings.TrimSpace(subject))

	if obs, ok := s.latest[subject]; ok {
		return obs, nil
	}
	if obs, ok := s.latest[strings.ToUpper(key)]; ok {
		return obs, nil
	}

	if stations, ok := s.regions[key]; ok {
		return s.freshestOf(stations, subject)
	}

	if key == "" || key == "local area" {
		return s.freshestOf(nil, "local area")
	}

	return domain.WeatherObservation{}, fmt.Errorf("no station reporting for %q", subject)
}

// freshestOf picks the newest held observation among the given stations,
// or among all stations when the list is nil.
func (s *LatestStore) freshestOf(stations []string, subject string) (domain.WeatherObservation, error) {
	var (
		best  domain.WeatherObservation
		found bool
	)
	consider := func(obs domain.WeatherObservation) {
		if !found || obs.Timestamp.After(best.Timestamp) {
			best, found = obs, true
		}
	}

	if stations == nil {
		for _, obs := range s.latest {
			consider(obs)
		}
	} else {
		for _, id := range stations {
			if obs, ok := s.latest[id]; ok {
				consider(obs)
			}
		}
	}

	if !found {
		return domain.WeatherObservation{}, fmt.Errorf("no station reporting for %q", subject)
	}
	return best, nil
}
