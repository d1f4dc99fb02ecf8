package storage

import (
	"database/sql"
	"errors"
	"math"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps SQLite-backed persistence for assembly runs and their
// per-channel statistics.
type Store struct {
	DB *sql.DB // Export for direct database access
}

// New opens (or creates) the database at path and ensures schema.
func New(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	s := &Store{DB: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS assembly_runs (
            id TEXT PRIMARY KEY,
            images_dir TEXT,
            cube_path TEXT,
            statistics_path TEXT,
            status TEXT NOT NULL,
            channel_count INTEGER,
            flagged_count INTEGER,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
            completed_at TIMESTAMP,
            error_message TEXT
        );`,
		`CREATE TABLE IF NOT EXISTS channel_stats (
            run_id TEXT,
            chan_no INTEGER,
            source_path TEXT,
            frequency_hz REAL,
            rms_stokes_i REAL,
            rms_stokes_v REAL,
            max_stokes_i REAL,
            flagged BOOLEAN DEFAULT FALSE,
            created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_channel_stats_run_id ON channel_stats(run_id);`,
		`CREATE INDEX IF NOT EXISTS idx_channel_stats_chan_no ON channel_stats(chan_no);`,
	}
	for _, stmt := range stmts {
		if _, err := s.DB.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Close closes the underlying DB.
func (s *Store) Close() error {
	if s == nil || s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

// RunRecord captures persisted run info.
type RunRecord struct {
	ID             string
	ImagesDir      string
	CubePath       string
	StatisticsPath string
	Status         string
	ChannelCount   int
	FlaggedCount   int
	Error          string
	CreatedAt      time.Time
	CompletedAt    *time.Time
}

// ChannelStat is one channel's persisted statistics row. Unavailable
// estimates round-trip as NaN.
type ChannelStat struct {
	ChanNo      int
	SourcePath  string
	FrequencyHz float64
	RMSStokesI  float64
	RMSStokesV  float64
	MaxStokesI  float64
	Flagged     bool
}

// RecordRunStart inserts a running assembly.
func (s *Store) RecordRunStart(rec RunRecord) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT OR REPLACE INTO assembly_runs (id, images_dir, cube_path, statistics_path, status, channel_count) VALUES (?, ?, ?, ?, ?, ?);`,
		rec.ID, rec.ImagesDir, rec.CubePath, rec.StatisticsPath, rec.Status, rec.ChannelCount)
	return err
}

// RecordRunResult finalizes a run with status, flag count and error.
func (s *Store) RecordRunResult(id, status string, flagged int, errMsg string) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`UPDATE assembly_runs SET status=?, flagged_count=?, completed_at=CURRENT_TIMESTAMP, error_message=? WHERE id=?;`,
		status, flagged, errMsg, id)
	return err
}

// RecordChannelStat persists one channel's statistics row.
func (s *Store) RecordChannelStat(runID string, stat ChannelStat) error {
	if s == nil {
		return nil
	}
	_, err := s.DB.Exec(`INSERT INTO channel_stats (run_id, chan_no, source_path, frequency_hz, rms_stokes_i, rms_stokes_v, max_stokes_i, flagged) VALUES (?, ?, ?, ?, ?, ?, ?, ?);`,
		runID, stat.ChanNo, stat.SourcePath, nullable(stat.FrequencyHz), nullable(stat.RMSStokesI), nullable(stat.RMSStokesV), nullable(stat.MaxStokesI), stat.Flagged)
	return err
}

// RecentRuns returns the latest runs up to limit.
func (s *Store) RecentRuns(limit int) ([]RunRecord, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT id, images_dir, cube_path, statistics_path, status, channel_count, flagged_count, created_at, completed_at, error_message FROM assembly_runs ORDER BY created_at DESC LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []RunRecord
	for rows.Next() {
		var rec RunRecord
		var created time.Time
		var completed sql.NullTime
		var channelCount, flaggedCount sql.NullInt64
		var errorMsg sql.NullString
		if err := rows.Scan(&rec.ID, &rec.ImagesDir, &rec.CubePath, &rec.StatisticsPath, &rec.Status, &channelCount, &flaggedCount, &created, &completed, &errorMsg); err != nil {
			return nil, err
		}
		rec.CreatedAt = created
		rec.ChannelCount = int(channelCount.Int64)
		rec.FlaggedCount = int(flaggedCount.Int64)
		if completed.Valid {
			rec.CompletedAt = &completed.Time
		}
		if errorMsg.Valid {
			rec.Error = errorMsg.String
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ChannelStats returns a run's statistics rows in insertion order.
func (s *Store) ChannelStats(runID string) ([]ChannelStat, error) {
	if s == nil {
		return nil, errors.New("store not initialized")
	}
	rows, err := s.DB.Query(`SELECT chan_no, source_path, frequency_hz, rms_stokes_i, rms_stokes_v, max_stokes_i, flagged FROM channel_stats WHERE run_id=? ORDER BY rowid;`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []ChannelStat
	for rows.Next() {
		var st ChannelStat
		var freq, rmsI, rmsV, maxI sql.NullFloat64
		if err := rows.Scan(&st.ChanNo, &st.SourcePath, &freq, &rmsI, &rmsV, &maxI, &st.Flagged); err != nil {
			return nil, err
		}
		st.FrequencyHz = floatOrNaN(freq)
		st.RMSStokesI = floatOrNaN(rmsI)
		st.RMSStokesV = floatOrNaN(rmsV)
		st.MaxStokesI = floatOrNaN(maxI)
		stats = append(stats, st)
	}
	return stats, nil
}

// nullable maps NaN to NULL so SQLite REAL columns stay well-defined.
func nullable(v float64) any {
	if math.IsNaN(v) {
		return nil
	}
	return v
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
