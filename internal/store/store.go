package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/awaistahir/smart-save/internal/advisor"
	"github.com/awaistahir/smart-save/internal/engine"
	_ "modernc.org/sqlite"
)

// ErrNotFound is returned when no settings have been saved yet
var ErrNotFound = errors.New("not found")

const householdID = "default"

// Store handles persistent storage using SQLite
type Store struct {
	db *sql.DB
}

// Sample is a stored power reading and the unit price in force when it was
// taken
type Sample struct {
	At    time.Time `json:"at"`
	Watts float64   `json:"watts"`
	Price float64   `json:"price"`
}

// NewStore creates a new store and initializes the database
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// SQLite allows one writer; MQTT and HTTP share this handle
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the database connection
func (s *Store) Close() error {
	return s.db.Close()
}

// initialize creates the database schema
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS settings (
		id TEXT PRIMARY KEY,
		tariff TEXT NOT NULL,
		level TEXT NOT NULL DEFAULT 'BALANCED',
		monthly_budget REAL NOT NULL DEFAULT 300,
		auto_level INTEGER NOT NULL DEFAULT 1,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS power_samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		recorded_at INTEGER NOT NULL,
		hour INTEGER NOT NULL,
		watts REAL NOT NULL,
		price REAL NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_power_samples_time ON power_samples(recorded_at);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating schema: %w", err)
	}
	return s.migrate()
}

// migrate adds columns missing from databases created by older versions
func (s *Store) migrate() error {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('power_samples') WHERE name = 'price'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("inspecting schema: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.db.Exec(`ALTER TABLE power_samples ADD COLUMN price REAL NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("adding price column: %w", err)
	}
	return nil
}

// SaveSettings saves or updates the household settings
func (s *Store) SaveSettings(st advisor.Settings) error {
	tariffJSON, err := json.Marshal(st.Tariff)
	if err != nil {
		return fmt.Errorf("encoding tariff: %w", err)
	}

	level := st.Level
	if level == 0 {
		level = engine.LevelBalanced
	}

	query := `INSERT OR REPLACE INTO settings
		(id, tariff, level, monthly_budget, auto_level, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`

	_, err = s.db.Exec(query, householdID, string(tariffJSON), level.String(), st.MonthlyBudget,
		boolToInt(st.AutoLevel), time.Now())
	if err != nil {
		return fmt.Errorf("saving settings: %w", err)
	}
	return nil
}

// GetSettings retrieves the household settings
func (s *Store) GetSettings() (advisor.Settings, error) {
	query := `SELECT tariff, level, monthly_budget, auto_level FROM settings WHERE id = ?`

	var st advisor.Settings
	var tariffJSON, levelStr string
	var autoInt int

	err := s.db.QueryRow(query, householdID).Scan(&tariffJSON, &levelStr, &st.MonthlyBudget, &autoInt)
	if errors.Is(err, sql.ErrNoRows) {
		return advisor.Settings{}, ErrNotFound
	}
	if err != nil {
		return advisor.Settings{}, fmt.Errorf("loading settings: %w", err)
	}

	if err := json.Unmarshal([]byte(tariffJSON), &st.Tariff); err != nil {
		return advisor.Settings{}, fmt.Errorf("decoding tariff: %w", err)
	}
	st.Level, err = engine.ParseLevel(levelStr)
	if err != nil {
		return advisor.Settings{}, err
	}
	st.AutoLevel = autoInt == 1

	return st, nil
}

// LoadSettings returns the saved settings. On first run defaults are saved
// and returned instead.
func (s *Store) LoadSettings(defaults advisor.Settings) (advisor.Settings, error) {
	st, err := s.GetSettings()
	if errors.Is(err, ErrNotFound) {
		if err := s.SaveSettings(defaults); err != nil {
			return advisor.Settings{}, err
		}
		return defaults, nil
	}
	return st, err
}

// AddSample stores a power reading taken at t with the unit price per kWh in
// force at that moment
func (s *Store) AddSample(t time.Time, watts, price float64) error {
	query := `INSERT INTO power_samples (recorded_at, hour, watts, price) VALUES (?, ?, ?, ?)`
	if _, err := s.db.Exec(query, t.Unix(), t.Hour(), watts, price); err != nil {
		return fmt.Errorf("saving sample: %w", err)
	}
	return nil
}

// RecentSamples returns up to n of the newest readings, oldest first
func (s *Store) RecentSamples(n int) ([]Sample, error) {
	query := `SELECT recorded_at, watts, price FROM (
		SELECT id, recorded_at, watts, price FROM power_samples ORDER BY recorded_at DESC, id DESC LIMIT ?
	) ORDER BY recorded_at ASC, id ASC`

	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("loading samples: %w", err)
	}
	defer rows.Close()

	samples := []Sample{}
	for rows.Next() {
		var unix int64
		var smp Sample
		if err := rows.Scan(&unix, &smp.Watts, &smp.Price); err != nil {
			return nil, err
		}
		smp.At = time.Unix(unix, 0)
		samples = append(samples, smp)
	}

	return samples, rows.Err()
}

// HourlyAverages returns the mean power per clock hour for readings taken at
// or after since
func (s *Store) HourlyAverages(since time.Time) (map[int]float64, error) {
	query := `SELECT hour, AVG(watts) FROM power_samples
		WHERE recorded_at >= ? GROUP BY hour ORDER BY hour`

	rows, err := s.db.Query(query, since.Unix())
	if err != nil {
		return nil, fmt.Errorf("loading hourly averages: %w", err)
	}
	defer rows.Close()

	hourly := map[int]float64{}
	for rows.Next() {
		var hour int
		var avg float64
		if err := rows.Scan(&hour, &avg); err != nil {
			return nil, err
		}
		hourly[hour] = avg
	}

	return hourly, rows.Err()
}

// CostSince prices the readings taken at or after since. Every clock hour
// that has readings counts as one hour at the mean of watts x price over
// those readings; hours without readings add nothing.
func (s *Store) CostSince(since time.Time) (float64, error) {
	query := `SELECT COALESCE(SUM(cost), 0) FROM (
		SELECT AVG(watts * price) / 1000.0 AS cost FROM power_samples
		WHERE recorded_at >= ? GROUP BY recorded_at / 3600
	)`

	var cost float64
	if err := s.db.QueryRow(query, since.Unix()).Scan(&cost); err != nil {
		return 0, fmt.Errorf("summing cost: %w", err)
	}
	return cost, nil
}

// PruneSamples deletes readings older than before and reports how many went
func (s *Store) PruneSamples(before time.Time) (int64, error) {
	res, err := s.db.Exec(`DELETE FROM power_samples WHERE recorded_at < ?`, before.Unix())
	if err != nil {
		return 0, fmt.Errorf("pruning samples: %w", err)
	}
	return res.RowsAffected()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
