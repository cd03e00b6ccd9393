// Package persistence provides SQLite-based run storage.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/bridge-keeper/internal/bridge"
	"github.com/talgya/bridge-keeper/internal/config"
	"github.com/talgya/bridge-keeper/internal/economy"
	"github.com/talgya/bridge-keeper/internal/engine"
	"github.com/talgya/bridge-keeper/internal/events"
	"github.com/talgya/bridge-keeper/internal/keeper"
	"github.com/talgya/bridge-keeper/internal/moral"
	"github.com/talgya/bridge-keeper/internal/notify"
	"github.com/talgya/bridge-keeper/internal/outcome"
	"github.com/talgya/bridge-keeper/internal/village"
)

// ErrNotFound is returned when a run or meta key does not exist.
var ErrNotFound = errors.New("not found")

const metaLastRun = "last_run_id"

// DB wraps a SQLite connection for run persistence.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		difficulty TEXT NOT NULL,
		state TEXT NOT NULL,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		elapsed REAL NOT NULL,
		total_segments INTEGER NOT NULL,
		bridge_required INTEGER NOT NULL,
		flood_timer REAL NOT NULL,
		time_of_day REAL NOT NULL,
		initial_villagers INTEGER NOT NULL,
		current_villagers INTEGER NOT NULL,
		standing INTEGER NOT NULL,
		pending_element INTEGER,
		tier TEXT,
		tuning_json TEXT NOT NULL,
		resources_json TEXT NOT NULL,
		consequences_json TEXT NOT NULL,
		scheduler_json TEXT NOT NULL,
		keeper_json TEXT NOT NULL,
		result_json TEXT
	);

	CREATE TABLE IF NOT EXISTS elements (
		run_id TEXT NOT NULL,
		id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		population INTEGER NOT NULL,
		yield_json TEXT NOT NULL,
		description TEXT NOT NULL,
		dismantled INTEGER NOT NULL,
		submerged INTEGER NOT NULL,
		PRIMARY KEY (run_id, id)
	);

	CREATE TABLE IF NOT EXISTS segments (
		run_id TEXT NOT NULL,
		idx INTEGER NOT NULL,
		y INTEGER NOT NULL,
		type TEXT NOT NULL,
		built_at INTEGER NOT NULL,
		completed INTEGER NOT NULL,
		PRIMARY KEY (run_id, idx)
	);

	CREATE TABLE IF NOT EXISTS choices (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		kind TEXT NOT NULL,
		description TEXT NOT NULL,
		population_affected INTEGER NOT NULL,
		yield_json TEXT NOT NULL,
		moral_impact INTEGER NOT NULL,
		category TEXT NOT NULL,
		ts INTEGER NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS achievements (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		key TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS run_events (
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		time REAL NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		PRIMARY KEY (run_id, seq)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_updated ON runs(updated_at);
	CREATE INDEX IF NOT EXISTS idx_run_events_category ON run_events(run_id, category);
	`
	_, err := db.conn.Exec(schema)
	return err
}

type runRow struct {
	ID               string         `db:"id"`
	Seed             int64          `db:"seed"`
	Difficulty       string         `db:"difficulty"`
	State            string         `db:"state"`
	CreatedAt        int64          `db:"created_at"`
	UpdatedAt        int64          `db:"updated_at"`
	Tick             uint64         `db:"tick"`
	Elapsed          float64        `db:"elapsed"`
	TotalSegments    int            `db:"total_segments"`
	BridgeRequired   int            `db:"bridge_required"`
	FloodTimer       float64        `db:"flood_timer"`
	TimeOfDay        float64        `db:"time_of_day"`
	InitialVillagers int            `db:"initial_villagers"`
	CurrentVillagers int            `db:"current_villagers"`
	Standing         int            `db:"standing"`
	PendingElement   sql.NullInt64  `db:"pending_element"`
	Tier             sql.NullString `db:"tier"`
	TuningJSON       string         `db:"tuning_json"`
	ResourcesJSON    string         `db:"resources_json"`
	ConsequencesJSON string         `db:"consequences_json"`
	SchedulerJSON    string         `db:"scheduler_json"`
	KeeperJSON       string         `db:"keeper_json"`
	ResultJSON       sql.NullString `db:"result_json"`
}

type elementRow struct {
	ID          int    `db:"id"`
	Kind        string `db:"kind"`
	X           int    `db:"x"`
	Y           int    `db:"y"`
	Width       int    `db:"width"`
	Height      int    `db:"height"`
	Population  int    `db:"population"`
	YieldJSON   string `db:"yield_json"`
	Description string `db:"description"`
	Dismantled  bool   `db:"dismantled"`
	Submerged   bool   `db:"submerged"`
}

type segmentRow struct {
	Index     int    `db:"idx"`
	Y         int    `db:"y"`
	Type      string `db:"type"`
	BuiltAt   int64  `db:"built_at"`
	Completed bool   `db:"completed"`
}

type choiceRow struct {
	Kind               string `db:"kind"`
	Description        string `db:"description"`
	PopulationAffected int    `db:"population_affected"`
	YieldJSON          string `db:"yield_json"`
	MoralImpact        int    `db:"moral_impact"`
	Category           string `db:"category"`
	Timestamp          int64  `db:"ts"`
}

// RunSummary is one row of the saved-runs listing.
type RunSummary struct {
	ID               string    `json:"id"`
	Difficulty       string    `json:"difficulty"`
	State            string    `json:"state"`
	Standing         int       `json:"standing"`
	CurrentVillagers int       `json:"current_villagers"`
	Tier             string    `json:"tier,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// SaveRun writes the snapshot (full replace of that run) in one transaction
// and marks it as the most recent run.
func (db *DB) SaveRun(s engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	row, err := toRunRow(s)
	if err != nil {
		return fmt.Errorf("encode run %s: %w", s.ID, err)
	}
	row.UpdatedAt = time.Now().UTC().UnixNano()

	for _, table := range []string{"elements", "segments", "choices", "achievements", "run_events"} {
		if _, err := tx.Exec("DELETE FROM "+table+" WHERE run_id = ?", s.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	_, err = tx.NamedExec(`INSERT OR REPLACE INTO runs
		(id, seed, difficulty, state, created_at, updated_at, tick, elapsed,
		 total_segments, bridge_required, flood_timer, time_of_day,
		 initial_villagers, current_villagers, standing, pending_element, tier,
		 tuning_json, resources_json, consequences_json, scheduler_json, keeper_json, result_json)
		VALUES (:id, :seed, :difficulty, :state, :created_at, :updated_at, :tick, :elapsed,
		 :total_segments, :bridge_required, :flood_timer, :time_of_day,
		 :initial_villagers, :current_villagers, :standing, :pending_element, :tier,
		 :tuning_json, :resources_json, :consequences_json, :scheduler_json, :keeper_json, :result_json)`,
		row)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", s.ID, err)
	}

	if err := saveElements(tx, s.ID, s.Elements); err != nil {
		return err
	}

	for _, seg := range s.Segments {
		_, err := tx.Exec(`INSERT INTO segments (run_id, idx, y, type, built_at, completed)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, seg.Index, seg.Y, string(seg.Type), nanos(seg.BuiltAt), seg.Completed)
		if err != nil {
			return fmt.Errorf("insert segment %d: %w", seg.Index, err)
		}
	}

	for i, c := range s.Choices {
		yieldJSON, err := json.Marshal(c.Yield)
		if err != nil {
			return err
		}
		_, err = tx.Exec(`INSERT INTO choices
			(run_id, seq, kind, description, population_affected, yield_json, moral_impact, category, ts)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			s.ID, i, c.Kind, c.Description, c.PopulationAffected, string(yieldJSON),
			c.MoralImpact, c.Category, nanos(c.Timestamp))
		if err != nil {
			return fmt.Errorf("insert choice %d: %w", i, err)
		}
	}

	for i, key := range s.Achievements {
		if _, err := tx.Exec("INSERT INTO achievements (run_id, seq, key) VALUES (?, ?, ?)", s.ID, i, key); err != nil {
			return fmt.Errorf("insert achievement %s: %w", key, err)
		}
	}

	for i, e := range s.Log {
		_, err := tx.Exec(`INSERT INTO run_events (run_id, seq, tick, time, description, category)
			VALUES (?, ?, ?, ?, ?, ?)`,
			s.ID, i, e.Tick, e.Time, e.Description, e.Category)
		if err != nil {
			return fmt.Errorf("insert run event %d: %w", i, err)
		}
	}

	if _, err := tx.Exec("INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)", metaLastRun, s.ID); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	slog.Debug("run saved", "id", s.ID, "tick", s.Tick, "state", s.State)
	return nil
}

func saveElements(tx *sqlx.Tx, runID string, elements []village.Element) error {
	stmt, err := tx.Preparex(`INSERT INTO elements
		(run_id, id, kind, x, y, width, height, population, yield_json, description, dismantled, submerged)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range elements {
		yieldJSON, err := json.Marshal(e.Yield)
		if err != nil {
			return err
		}
		_, err = stmt.Exec(runID, e.ID, string(e.Kind), e.X, e.Y, e.Width, e.Height,
			e.Population, string(yieldJSON), e.Description, e.Dismantled, e.Submerged)
		if err != nil {
			return fmt.Errorf("insert element %d: %w", e.ID, err)
		}
	}
	return nil
}

// LoadRun reads a saved run. Derived display fields other than Standing are
// left zero; engine.Restore recomputes them.
func (db *DB) LoadRun(id string) (engine.Snapshot, error) {
	var row runRow
	if err := db.conn.Get(&row, "SELECT * FROM runs WHERE id = ?", id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return engine.Snapshot{}, fmt.Errorf("run %s: %w", id, ErrNotFound)
		}
		return engine.Snapshot{}, fmt.Errorf("load run %s: %w", id, err)
	}

	s, err := fromRunRow(row)
	if err != nil {
		return engine.Snapshot{}, fmt.Errorf("decode run %s: %w", id, err)
	}

	var elements []elementRow
	if err := db.conn.Select(&elements, `SELECT id, kind, x, y, width, height, population,
		yield_json, description, dismantled, submerged FROM elements WHERE run_id = ? ORDER BY id`, id); err != nil {
		return engine.Snapshot{}, fmt.Errorf("load elements: %w", err)
	}
	s.Elements = make([]village.Element, 0, len(elements))
	for _, e := range elements {
		var yield economy.Materials
		if err := json.Unmarshal([]byte(e.YieldJSON), &yield); err != nil {
			return engine.Snapshot{}, fmt.Errorf("element %d yield: %w", e.ID, err)
		}
		s.Elements = append(s.Elements, village.Element{
			ID: e.ID, Kind: village.Kind(e.Kind),
			X: e.X, Y: e.Y, Width: e.Width, Height: e.Height,
			Population: e.Population, Yield: yield, Description: e.Description,
			Dismantled: e.Dismantled, Submerged: e.Submerged,
		})
	}

	var segments []segmentRow
	if err := db.conn.Select(&segments, `SELECT idx, y, type, built_at, completed
		FROM segments WHERE run_id = ? ORDER BY idx`, id); err != nil {
		return engine.Snapshot{}, fmt.Errorf("load segments: %w", err)
	}
	for _, seg := range segments {
		s.Segments = append(s.Segments, bridge.Segment{
			Index: seg.Index, Y: seg.Y, Type: bridge.SegmentType(seg.Type),
			BuiltAt: fromNanos(seg.BuiltAt), Completed: seg.Completed,
		})
	}

	var choices []choiceRow
	if err := db.conn.Select(&choices, `SELECT kind, description, population_affected, yield_json,
		moral_impact, category, ts FROM choices WHERE run_id = ? ORDER BY seq`, id); err != nil {
		return engine.Snapshot{}, fmt.Errorf("load choices: %w", err)
	}
	for _, c := range choices {
		var yield economy.Materials
		if err := json.Unmarshal([]byte(c.YieldJSON), &yield); err != nil {
			return engine.Snapshot{}, fmt.Errorf("choice yield: %w", err)
		}
		s.Choices = append(s.Choices, moral.Choice{
			Kind: c.Kind, Description: c.Description, PopulationAffected: c.PopulationAffected,
			Yield: yield, MoralImpact: c.MoralImpact, Category: c.Category,
			Timestamp: fromNanos(c.Timestamp),
		})
	}

	if err := db.conn.Select(&s.Achievements,
		"SELECT key FROM achievements WHERE run_id = ? ORDER BY seq", id); err != nil {
		return engine.Snapshot{}, fmt.Errorf("load achievements: %w", err)
	}

	if err := db.conn.Select(&s.Log,
		"SELECT tick, time, description, category FROM run_events WHERE run_id = ? ORDER BY seq", id); err != nil {
		return engine.Snapshot{}, fmt.Errorf("load run events: %w", err)
	}

	return s, nil
}

// LatestRunID returns the id of the most recently saved run.
func (db *DB) LatestRunID() (string, error) {
	id, err := db.GetMeta(metaLastRun)
	if err != nil {
		return "", err
	}
	return id, nil
}

// ListRuns returns up to limit saved runs, most recently saved first.
func (db *DB) ListRuns(limit int) ([]RunSummary, error) {
	var rows []struct {
		ID               string         `db:"id"`
		Difficulty       string         `db:"difficulty"`
		State            string         `db:"state"`
		Standing         int            `db:"standing"`
		CurrentVillagers int            `db:"current_villagers"`
		Tier             sql.NullString `db:"tier"`
		UpdatedAt        int64          `db:"updated_at"`
	}
	err := db.conn.Select(&rows, `SELECT id, difficulty, state, standing, current_villagers, tier, updated_at
		FROM runs ORDER BY updated_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}

	out := make([]RunSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, RunSummary{
			ID:               r.ID,
			Difficulty:       r.Difficulty,
			State:            r.State,
			Standing:         r.Standing,
			CurrentVillagers: r.CurrentVillagers,
			Tier:             r.Tier.String,
			UpdatedAt:        fromNanos(r.UpdatedAt),
		})
	}
	return out, nil
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("meta %s: %w", key, ErrNotFound)
	}
	return value, err
}

func toRunRow(s engine.Snapshot) (runRow, error) {
	row := runRow{
		ID:               s.ID,
		Seed:             s.Seed,
		Difficulty:       string(s.Difficulty),
		State:            string(s.State),
		CreatedAt:        nanos(s.CreatedAt),
		Tick:             s.Tick,
		Elapsed:          s.Elapsed,
		TotalSegments:    s.TotalSegments,
		BridgeRequired:   s.BridgeRequired,
		FloodTimer:       s.FloodTimer,
		TimeOfDay:        s.TimeOfDay,
		InitialVillagers: s.InitialVillagers,
		CurrentVillagers: s.CurrentVillagers,
		Standing:         s.Standing,
	}
	if s.PendingElement != nil {
		row.PendingElement = sql.NullInt64{Int64: int64(*s.PendingElement), Valid: true}
	}

	var err error
	if row.TuningJSON, err = marshal(s.Tuning); err != nil {
		return row, err
	}
	if row.ResourcesJSON, err = marshal(s.Resources); err != nil {
		return row, err
	}
	if row.ConsequencesJSON, err = marshal(s.Consequences); err != nil {
		return row, err
	}
	if row.SchedulerJSON, err = marshal(s.Scheduler); err != nil {
		return row, err
	}
	if row.KeeperJSON, err = marshal(s.Keeper); err != nil {
		return row, err
	}
	if s.Result != nil {
		res, err := marshal(s.Result)
		if err != nil {
			return row, err
		}
		row.ResultJSON = sql.NullString{String: res, Valid: true}
		row.Tier = sql.NullString{String: string(s.Result.Tier), Valid: true}
	}
	return row, nil
}

func fromRunRow(row runRow) (engine.Snapshot, error) {
	s := engine.Snapshot{
		ID:               row.ID,
		Seed:             row.Seed,
		Difficulty:       config.Difficulty(row.Difficulty),
		State:            engine.State(row.State),
		CreatedAt:        fromNanos(row.CreatedAt),
		Tick:             row.Tick,
		Elapsed:          row.Elapsed,
		TotalSegments:    row.TotalSegments,
		BridgeRequired:   row.BridgeRequired,
		FloodTimer:       row.FloodTimer,
		TimeOfDay:        row.TimeOfDay,
		InitialVillagers: row.InitialVillagers,
		CurrentVillagers: row.CurrentVillagers,
		Standing:         row.Standing,
	}
	if row.PendingElement.Valid {
		id := int(row.PendingElement.Int64)
		s.PendingElement = &id
	}

	var (
		tuning       config.Tuning
		resources    economy.Materials
		consequences []notify.Message
		scheduler    events.State
		k            keeper.Keeper
	)
	for _, f := range []struct {
		raw string
		dst any
	}{
		{row.TuningJSON, &tuning},
		{row.ResourcesJSON, &resources},
		{row.ConsequencesJSON, &consequences},
		{row.SchedulerJSON, &scheduler},
		{row.KeeperJSON, &k},
	} {
		if err := json.Unmarshal([]byte(f.raw), f.dst); err != nil {
			return s, err
		}
	}
	s.Tuning = tuning
	s.Resources = resources
	s.Consequences = consequences
	s.Scheduler = scheduler
	s.Keeper = k

	if row.ResultJSON.Valid {
		var res outcome.Result
		if err := json.Unmarshal([]byte(row.ResultJSON.String), &res); err != nil {
			return s, err
		}
		s.Result = &res
	}
	return s, nil
}

func marshal(v any) (string, error) {
	b, err := json.Marshal(v)
	return string(b), err
}

func nanos(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	if n == 0 {
		return time.Time{}
	}
	return time.Unix(0, n).UTC()
}
