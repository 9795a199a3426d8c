package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"jobmate/aggregator-service/internal/logger"
	"jobmate/aggregator-service/internal/model"
)

const postgresSchema = `
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
	collected_at       TIMESTAMPTZ NOT NULL,
	description_raw    TEXT NOT NULL DEFAULT '',
	salary_text        TEXT NOT NULL DEFAULT '',
	skills_extracted   TEXT[] NOT NULL DEFAULT '{}',
	fetch_status       TEXT NOT NULL,
	failure_reason     TEXT NOT NULL DEFAULT '',
	first_seen         TIMESTAMPTZ NOT NULL,
	last_seen          TIMESTAMPTZ NOT NULL,
	repost_count       INTEGER NOT NULL DEFAULT 0,
	merged_from        TEXT[] NOT NULL DEFAULT '{}',
	fit_score          INTEGER NOT NULL DEFAULT 0,
	fit_grade          TEXT NOT NULL DEFAULT 'D',
	fit_notes          TEXT NOT NULL DEFAULT '',
	missing_must_have  TEXT[] NOT NULL DEFAULT '{}',
	flags              TEXT[] NOT NULL DEFAULT '{}',
	user_status        TEXT NOT NULL DEFAULT 'New',
	user_notes         TEXT NOT NULL DEFAULT '',
	possible_duplicate BOOLEAN NOT NULL DEFAULT FALSE
);
CREATE INDEX IF NOT EXISTS jobs_canonical_url_idx ON jobs (canonical_url);

CREATE TABLE IF NOT EXISTS job_sources_seen (
	job_id        TEXT NOT NULL REFERENCES jobs (job_id) ON DELETE CASCADE,
	source_name   TEXT NOT NULL,
	source_domain TEXT NOT NULL,
	PRIMARY KEY (job_id, source_name)
);

CREATE TABLE IF NOT EXISTS runs (
	run_id          UUID PRIMARY KEY,
	profile         TEXT NOT NULL,
	mode            TEXT NOT NULL,
	started_at      TIMESTAMPTZ NOT NULL,
	finished_at     TIMESTAMPTZ NOT NULL,
	num_found       INTEGER NOT NULL,
	num_collected   INTEGER NOT NULL,
	num_failed      INTEGER NOT NULL,
	num_merged      INTEGER NOT NULL,
	num_filtered    INTEGER NOT NULL,
	num_exported    INTEGER NOT NULL,
	num_sink_errors INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS run_errors (
	run_id UUID NOT NULL REFERENCES runs (run_id) ON DELETE CASCADE,
	source TEXT NOT NULL,
	domain TEXT NOT NULL,
	reason TEXT NOT NULL
);`

const postgresUpsert = `
INSERT INTO jobs (
	job_id, source_domain, source_name, job_url, canonical_url, apply_url,
	title, company, location_text, remote_flag, employment_type, posted_date,
	collected_at, description_raw, salary_text, skills_extracted,
	fetch_status, failure_reason, first_seen, last_seen, repost_count, merged_from,
	fit_score, fit_grade, fit_notes, missing_must_have, flags,
	user_status, user_notes, possible_duplicate
) VALUES (
	$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
	$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, $27, $28, $29, $30
)
ON CONFLICT (job_id) DO UPDATE SET
	source_domain     = EXCLUDED.source_domain,
	source_name       = EXCLUDED.source_name,
	job_url           = EXCLUDED.job_url,
	canonical_url     = EXCLUDED.canonical_url,
	apply_url         = EXCLUDED.apply_url,
	title             = EXCLUDED.title,
	company           = EXCLUDED.company,
	location_text     = EXCLUDED.location_text,
	remote_flag       = EXCLUDED.remote_flag,
	employment_type   = EXCLUDED.employment_type,
	posted_date       = EXCLUDED.posted_date,
	description_raw   = EXCLUDED.description_raw,
	salary_text       = EXCLUDED.salary_text,
	skills_extracted  = EXCLUDED.skills_extracted,
	fetch_status      = EXCLUDED.fetch_status,
	failure_reason    = EXCLUDED.failure_reason,
	last_seen         = EXCLUDED.last_seen,
	repost_count      = EXCLUDED.repost_count,
	merged_from       = EXCLUDED.merged_from,
	fit_score         = EXCLUDED.fit_score,
	fit_grade         = EXCLUDED.fit_grade,
	fit_notes         = EXCLUDED.fit_notes,
	missing_must_have = EXCLUDED.missing_must_have,
	flags             = EXCLUDED.flags`

// Postgres is the shared-database sink. Lists map to text[].
type Postgres struct {
	pool *pgxpool.Pool
	log  *logger.Logger
}

// NewPostgres creates the schema if needed.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool) (*Postgres, error) {
	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		return nil, fmt.Errorf("postgres schema: %w", err)
	}
	return &Postgres{pool: pool, log: logger.Named("storage")}, nil
}

// Upsert writes rec and the sources it was seen on in one transaction.
func (s *Postgres) Upsert(ctx context.Context, rec model.JobRecord) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, postgresUpsert,
			rec.JobID, rec.SourceDomain, rec.SourceName, rec.JobURL, rec.CanonicalURL, rec.ApplyURL,
			rec.Title, rec.Company, rec.LocationText, rec.RemoteFlag, rec.EmploymentType, rec.PostedDate,
			rec.CollectedAt, rec.DescriptionRaw, rec.SalaryText, nonNil(rec.SkillsExtracted),
			rec.FetchStatus, rec.FailureReason, rec.FirstSeen, rec.LastSeen, rec.RepostCount, nonNil(rec.MergedFrom),
			rec.FitScore, rec.FitGrade, rec.FitNotes, nonNil(rec.MissingMustHave), nonNil(rec.Flags),
			orDefault(rec.UserStatus, model.DefaultUserStatus), rec.UserNotes, rec.PossibleDuplicate,
		)
		if err != nil {
			return fmt.Errorf("upsert %s: %w", rec.JobID, err)
		}

		batch := &pgx.Batch{}
		for _, name := range sourceNames(rec.SourceName) {
			batch.Queue(
				`INSERT INTO job_sources_seen (job_id, source_name, source_domain) VALUES ($1, $2, $3)
				 ON CONFLICT DO NOTHING`,
				rec.JobID, name, rec.SourceDomain,
			)
		}
		if batch.Len() == 0 {
			return nil
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("upsert %s sources: %w", rec.JobID, err)
		}
		return nil
	})
}

// Get loads one record.
func (s *Postgres) Get(ctx context.Context, jobID string) (model.JobRecord, error) {
	var r model.JobRecord
	err := s.pool.QueryRow(ctx, `
		SELECT job_id, source_domain, source_name, job_url, canonical_url, apply_url,
			title, company, location_text, remote_flag, employment_type, posted_date,
			collected_at, description_raw, salary_text, skills_extracted,
			fetch_status, failure_reason, first_seen, last_seen, repost_count, merged_from,
			fit_score, fit_grade, fit_notes, missing_must_have, flags,
			user_status, user_notes, possible_duplicate
		FROM jobs WHERE job_id = $1`, jobID,
	).Scan(
		&r.JobID, &r.SourceDomain, &r.SourceName, &r.JobURL, &r.CanonicalURL, &r.ApplyURL,
		&r.Title, &r.Company, &r.LocationText, &r.RemoteFlag, &r.EmploymentType, &r.PostedDate,
		&r.CollectedAt, &r.DescriptionRaw, &r.SalaryText, &r.SkillsExtracted,
		&r.FetchStatus, &r.FailureReason, &r.FirstSeen, &r.LastSeen, &r.RepostCount, &r.MergedFrom,
		&r.FitScore, &r.FitGrade, &r.FitNotes, &r.MissingMustHave, &r.Flags,
		&r.UserStatus, &r.UserNotes, &r.PossibleDuplicate,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.JobRecord{}, ErrNotFound
	}
	if err != nil {
		return model.JobRecord{}, fmt.Errorf("get %s: %w", jobID, err)
	}
	return r, nil
}

// SourcesSeen lists the source names recorded for jobID, sorted.
func (s *Postgres) SourcesSeen(ctx context.Context, jobID string) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT source_name FROM job_sources_seen WHERE job_id = $1 ORDER BY source_name`, jobID)
	if err != nil {
		return nil, fmt.Errorf("sources seen %s: %w", jobID, err)
	}
	names, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("sources seen %s: %w", jobID, err)
	}
	return nonNil(names), nil
}

// RecordRun stores the summary and one run_errors row per failed source.
func (s *Postgres) RecordRun(ctx context.Context, sum model.RunSummary) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
			INSERT INTO runs (run_id, profile, mode, started_at, finished_at, num_found, num_collected,
				num_failed, num_merged, num_filtered, num_exported, num_sink_errors)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			sum.RunID, sum.Profile, sum.Mode, sum.StartedAt, sum.FinishedAt,
			sum.Found, sum.Collected, sum.Failed, sum.Merged, sum.Filtered, sum.Exported, sum.SinkErrors,
		); err != nil {
			return fmt.Errorf("record run %s: %w", sum.RunID, err)
		}
		for _, e := range sum.SourceErrors {
			if _, err := tx.Exec(ctx,
				`INSERT INTO run_errors (run_id, source, domain, reason) VALUES ($1, $2, $3, $4)`,
				sum.RunID, e.Source, e.Domain, e.Reason,
			); err != nil {
				return fmt.Errorf("record run %s error row: %w", sum.RunID, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	s.log.Debug().Str("run_id", sum.RunID).Int("source_errors", len(sum.SourceErrors)).Msg("run recorded")
	return nil
}
