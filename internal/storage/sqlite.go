package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id             TEXT PRIMARY KEY,
	source_domain      TEXT NOT NULL,
	source_name        TEXT NOT NULL,
	job_url            TEXT NOT NULL,
	canonical_url      TEXT NOT NULL,
	apply_url          TEXT NOT NULL DEFAULT '',
	title              TEXT NOT NULL,
	company            TEXT NOT NULL,
	location_text      TEXT NOT NULL,
	remote_flag        TEXT NOT NULL,
	employment_type    TEXT NOT NULL,
	posted_date        TEXT NOT NULL DEFAULT '',
	collected_at       TEXT NOT NULL,
	description_raw    TEXT NOT NULL DEFAULT '',
	salary_text        TEXT NOT NULL DEFAULT '',
	skills_extracted   TEXT NOT NULL DEFAULT '[]',
	fetch_status       TEXT NOT NULL,
	failure_reason     TEXT NOT NULL DEFAULT '',
	first_seen         TEXT NOT NULL,
	last_seen          TEXT NOT NULL,
	repost_count       INTEGER NOT NULL DEFAULT 0,
	merged_from        TEXT NOT NULL DEFAULT '[]',
	fit_score          INTEGER NOT NULL DEFAULT 0,
	fit_grade          TEXT NOT NULL DEFAULT 'D',
	fit_notes          TEXT NOT NULL DEFAULT '',
	missing_must_have  TEXT NOT NULL DEFAULT '[]',
	flags              TEXT NOT NULL DEFAULT '[]',
	user_status        TEXT NOT NULL DEFAULT 'New',
	user_notes         TEXT NOT NULL DEFAULT '',
	possible_duplicate INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS jobs_canonical_url_idx ON jobs (canonical_url);

CREATE TABLE IF NOT EXISTS job_sources_seen (
	job_id        TEXT NOT NULL REFERENCES jobs (job_id) ON DELETE CASCADE,
	source_name   TEXT NOT NULL,
	source_domain TEXT NOT NULL,
	PRIMARY KEY (job_id, source_name)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id          TEXT PRIMARY KEY,
	profile         TEXT NOT NULL,
	mode            TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT NOT NULL,
	num_found       INTEGER NOT NULL,
	num_collected   INTEGER NOT NULL,
	num_failed      INTEGER NOT NULL,
	num_merged      INTEGER NOT NULL,
	num_filtered    INTEGER NOT NULL,
	num_exported    INTEGER NOT NULL,
	num_sink_errors INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_errors (
	run_id TEXT NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	domain TEXT NOT NULL,
	reason TEXT NOT NULL
);`

const sqliteUpsert = `
INSERT INTO jobs (
	job_id, source_domain, source_name, job_url, canonical_url, apply_url,
	title, company, location_text, remote_flag, employment_type, posted_date,
	collected_at, description_raw, salary_text, skills_extracted,
	fetch_status, failure_reason, first_seen, last_seen, repost_count, merged_from,
	fit_score, fit_grade, fit_notes, missing_must_have, flags,
	user_status, user_notes, possible_duplicate
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
ON CONFLICT (job_id) DO UPDATE SET
	source_domain     = excluded.source_domain,
	source_name       = excluded.source_name,
	job_url           = excluded.job_url,
	canonical_url     = excluded.canonical_url,
	apply_url         = excluded.apply_url,
	title             = excluded.title,
	company           = excluded.company,
	location_text     = excluded.location_text,
	remote_flag       = excluded.remote_flag,
	employment_type   = excluded.employment_type,
	posted_date       = excluded.posted_date,
	description_raw   = excluded.description_raw,
	salary_text       = excluded.salary_text,
	skills_extracted  = excluded.skills_extracted,
	fetch_status      = excluded.fetch_status,
	failure_reason    = excluded.failure_reason,
	last_seen         = excluded.last_seen,
	repost_count      = excluded.repost_count,
	merged_from       = excluded.merged_from,
	fit_score         = excluded.fit_score,
	fit_grade         = excluded.fit_grade,
	fit_notes         = excluded.fit_notes,
	missing_must_have = excluded.missing_must_have,
	flags             = excluded.flags`

const sqliteSelect = `
SELECT job_id, source_domain, source_name, job_url, canonical_url, apply_url,
	title, company, location_text, remote_flag, employment_type, posted_date,
	collected_at, description_raw, salary_text, skills_extracted,
	fetch_status, failure_reason, first_seen, last_seen, repost_count, merged_from,
	fit_score, fit_grade, fit_notes, missing_must_have, flags,
	user_status, user_notes, possible_duplicate
FROM jobs WHERE job_id = ?`

// SQLite is the file-backed sink. Lists are stored as JSON arrays and
// timestamps as RFC 3339 text.
type SQLite struct {
	db  *sql.DB
	log *logger.Logger
}

// NewSQLite creates the schema on db if needed.
func NewSQLite(ctx context.Context, db *sql.DB) (*SQLite, error) {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return nil, fmt.Errorf("sqlite schema: %w", err)
	}
	return &SQLite{db: db, log: logger.Named("storage")}, nil
}

// Upsert writes rec and the sources it was seen on.
func (s *SQLite) Upsert(ctx context.Context, rec model.JobRecord) error {
	lists := make([]string, 4)
	for i, l := range [][]string{rec.SkillsExtracted, rec.MergedFrom, rec.MissingMustHave, rec.Flags} {
		b, err := json.Marshal(nonNil(l))
		if err != nil {
			return fmt.Errorf("encode list: %w", err)
		}
		lists[i] = string(b)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("upsert %s begin: %w", rec.JobID, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, sqliteUpsert,
		rec.JobID, rec.SourceDomain, rec.SourceName, rec.JobURL, rec.CanonicalURL, rec.ApplyURL,
		rec.Title, rec.Company, rec.LocationText, rec.RemoteFlag, rec.EmploymentType, rec.PostedDate,
		formatTime(rec.CollectedAt), rec.DescriptionRaw, rec.SalaryText, lists[0],
		rec.FetchStatus, rec.FailureReason, formatTime(rec.FirstSeen), formatTime(rec.LastSeen), rec.RepostCount, lists[1],
		rec.FitScore, rec.FitGrade, rec.FitNotes, lists[2], lists[3],
		orDefault(rec.UserStatus, model.DefaultUserStatus), rec.UserNotes, rec.PossibleDuplicate,
	)
	if err != nil {
		return fmt.Errorf("upsert %s: %w", rec.JobID, err)
	}

	for _, name := range sourceNames(rec.SourceName) {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO job_sources_seen (job_id, source_name, source_domain) VALUES (?, ?, ?)`,
			rec.JobID, name, rec.SourceDomain,
		); err != nil {
			return fmt.Errorf("upsert %s sources: %w", rec.JobID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("upsert %s commit: %w", rec.JobID, err)
	}
	return nil
}

// Get loads one record.
func (s *SQLite) Get(ctx context.Context, jobID string) (model.JobRecord, error) {
	var (
		r                              model.JobRecord
		collected, first, last         string
		skills, merged, missing, flags string
	)
	err := s.db.QueryRowContext(ctx, sqliteSelect, jobID).Scan(
		&r.JobID, &r.SourceDomain, &r.SourceName, &r.JobURL, &r.CanonicalURL, &r.ApplyURL,
		&r.Title, &r.Company, &r.LocationText, &r.RemoteFlag, &r.EmploymentType, &r.PostedDate,
		&collected, &r.DescriptionRaw, &r.SalaryText, &skills,
		&r.FetchStatus, &r.FailureReason, &first, &last, &r.RepostCount, &merged,
		&r.FitScore, &r.FitGrade, &r.FitNotes, &missing, &flags,
		&r.UserStatus, &r.UserNotes, &r.PossibleDuplicate,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return model.JobRecord{}, ErrNotFound
	}
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("get %s: %w", jobID, err)
	}

	for _, t := range []struct {
		raw string
		dst *time.Time
	}{{collected, &r.CollectedAt}, {first, &r.FirstSeen}, {last, &r.LastSeen}} {
		if *t.dst, err = time.Parse(time.RFC3339Nano, t.raw); err != nil {
			return model.JobRecord{}, fmt.Errorf("get %s: parse time %q: %w", jobID, t.raw, err)
		}
	}
	for _, l := range []struct {
		raw string
		dst *[]string
	}{{skills, &r.SkillsExtracted}, {merged, &r.MergedFrom}, {missing, &r.MissingMustHave}, {flags, &r.Flags}} {
		if err := json.Unmarshal([]byte(l.raw), l.dst); err != nil {
			return model.JobRecord{}, fmt.Errorf("get %s: decode list: %w", jobID, err)
		}
	}
	return r, nil
}

// SourcesSeen lists the source names recorded for jobID, sorted.
func (s *SQLite) SourcesSeen(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT source_name FROM job_sources_seen WHERE job_id = ? ORDER BY source_name`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sources seen %s: %w", jobID, err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("sources seen %s scan: %w", jobID, err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

// RecordRun stores the summary and one run_errors row per failed source.
func (s *SQLite) RecordRun(ctx context.Context, sum model.RunSummary) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("record run begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (run_id, profile, mode, started_at, finished_at, num_found, num_collected,
			num_failed, num_merged, num_filtered, num_exported, num_sink_errors)
		VALUES (?,?,?,?,?,?,?,?,?,?,?,?)`,
		sum.RunID, sum.Profile, sum.Mode, formatTime(sum.StartedAt), formatTime(sum.FinishedAt),
		sum.Found, sum.Collected, sum.Failed, sum.Merged, sum.Filtered, sum.Exported, sum.SinkErrors,
	)
	if err != nil {
		return fmt.Errorf("record run %s: %w", sum.RunID, err)
	}
	for _, e := range sum.SourceErrors {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO run_errors (run_id, source, domain, reason) VALUES (?, ?, ?, ?)`,
			sum.RunID, e.Source, e.Domain, e.Reason,
		); err != nil {
			return fmt.Errorf("record run %s error row: %w", sum.RunID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("record run %s commit: %w", sum.RunID, err)
	}
	s.log.Debug().Str("run_id", sum.RunID).Int("source_errors", len(sum.SourceErrors)).Msg("run recorded")
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
