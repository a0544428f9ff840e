package league

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"

	"github.com/AlenaMus/L-25-TheAgentsGame/internal/schedule"
	"github.com/AlenaMus/L-25-TheAgentsGame/internal/standings"
)

// ErrDocumentNotFound is returned when a league document has not been saved
// yet.
var ErrDocumentNotFound = errors.New("league: document not found")

// Store persists league documents as whole JSON files under
// <dataDir>/leagues/<leagueID>/. Every write replaces the full document;
// readers always see a complete, self-consistent file. That read-modify-write
// granularity is all the league needs; there is no partial-update surface.
type Store struct {
	baseDir string
}

// NewStore creates the document directory if needed.
func NewStore(dataDir, leagueID string) (*Store, error) {
	baseDir := filepath.Join(dataDir, "leagues", leagueID)
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("league: creating store dir: %w", err)
	}
	return &Store{baseDir: baseDir}, nil
}

// SaveSchedule writes the full tournament plan.
func (s *Store) SaveSchedule(plan *schedule.Plan) error {
	return s.save("schedule.json", plan)
}

// LoadSchedule reads the tournament plan, or ErrDocumentNotFound.
func (s *Store) LoadSchedule() (*schedule.Plan, error) {
	var plan schedule.Plan
	if err := s.load("schedule.json", &plan); err != nil {
		return nil, err
	}
	return &plan, nil
}

// SaveStandings writes the current ranked standings.
func (s *Store) SaveStandings(table []standings.PlayerStanding) error {
	return s.save("standings.json", table)
}

// LoadStandings reads the last saved standings; a missing document yields an
// empty table, not an error.
func (s *Store) LoadStandings() ([]standings.PlayerStanding, error) {
	var table []standings.PlayerStanding
	err := s.load("standings.json", &table)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, nil
	}
	return table, err
}

// SaveResults writes the full match result audit trail.
func (s *Store) SaveResults(results []standings.MatchResult) error {
	return s.save("results.json", results)
}

// LoadResults reads the match audit trail; missing yields empty.
func (s *Store) LoadResults() ([]standings.MatchResult, error) {
	var results []standings.MatchResult
	err := s.load("results.json", &results)
	if errors.Is(err, ErrDocumentNotFound) {
		return nil, nil
	}
	return results, err
}

func (s *Store) save(name string, doc any) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("league: encoding %s: %w", name, err)
	}
	path := filepath.Join(s.baseDir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("league: writing %s: %w", name, err)
	}
	log.WithFields(log.Fields{"path": path}).Debug("League document saved")
	return nil
}

func (s *Store) load(name string, out any) error {
	data, err := os.ReadFile(filepath.Join(s.baseDir, name))
	if errors.Is(err, os.ErrNotExist) {
		return ErrDocumentNotFound
	}
	if err != nil {
		return fmt.Errorf("league: reading %s: %w", name, err)
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("league: decoding %s: %w", name, err)
	}
	return nil
}
