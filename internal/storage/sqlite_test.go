package storage_test

import (
	"context"
	"database/sql"
	"errors"
	"reflect"
	"testing"
	"time"

	"jobmate/aggregator-service/internal/db"
	"jobmate/aggregator-service/internal/model"
	"jobmate/aggregator-service/internal/storage"
)

var (
	day1 = time.Date(2026, 10, 14, 9, 0, 0, 0, time.UTC)
	day2 = day1.Add(24 * time.Hour)
)

func openSQLite(t *testing.T) (*storage.SQLite, *sql.DB) {
	t.Helper()
	conn, err := db.OpenSQLite(db.MemoryDSN)
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	s, err := storage.NewSQLite(context.Background(), conn)
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	return s, conn
}

func record(at time.Time) model.JobRecord {
	return model.JobRecord{
		JobID:           "3f2a9c0d1e4b5a67",
		SourceDomain:    "boards.greenhouse.io",
		SourceName:      "Greenhouse,Remotive",
		JobURL:          "https://boards.greenhouse.io/acme/jobs/1?utm_source=x",
		CanonicalURL:    "https://boards.greenhouse.io/acme/jobs/1",
		Title:           "Network Engineer",
		Company:         "Acme",
		LocationText:    "Remote",
		RemoteFlag:      "Remote",
		EmploymentType:  "Full-time",
		PostedDate:      "2026-10-13T08:00:00Z",
		DescriptionRaw:  "Own the network.",
		SkillsExtracted: []string{"bgp", "tcp/ip"},
		CollectedAt:     at,
		FirstSeen:       at,
		LastSeen:        at,
		FetchStatus:     model.FetchSuccess,
		MergedFrom:      []string{"aaaa000011112222"},
		FitScore:        62,
		FitGrade:        "C",
		FitNotes:        "must_match=1/1; flags=none; freshness=10",
		MissingMustHave: []string{},
		Flags:           []string{},
		UserStatus:      model.DefaultUserStatus,
	}
}

// ── Upsert ──────────────────────────────────────────────────────────────────

func TestSQLite_UpsertThenGet(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()
	want := record(day1)

	if err := s.Upsert(ctx, want); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := s.Get(ctx, want.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("round trip mismatch\n got: %+v\nwant: %+v", got, want)
	}
}

func TestSQLite_UpsertPreservesUserOwnedFields(t *testing.T) {
	s, conn := openSQLite(t)
	ctx := context.Background()

	if err := s.Upsert(ctx, record(day1)); err != nil {
		t.Fatalf("first Upsert: %v", err)
	}
	if _, err := conn.Exec(
		`UPDATE jobs SET user_status = 'Applied', user_notes = 'called recruiter', possible_duplicate = 1 WHERE job_id = ?`,
		record(day1).JobID,
	); err != nil {
		t.Fatal(err)
	}

	again := record(day2)
	again.FitScore = 71
	again.FitGrade = "B"
	again.Flags = []string{"clearance"}
	if err := s.Upsert(ctx, again); err != nil {
		t.Fatalf("second Upsert: %v", err)
	}

	got, err := s.Get(ctx, again.JobID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.UserStatus != "Applied" || got.UserNotes != "called recruiter" || !got.PossibleDuplicate {
		t.Errorf("user fields overwritten: %q %q %v", got.UserStatus, got.UserNotes, got.PossibleDuplicate)
	}
	if !got.FirstSeen.Equal(day1) || !got.CollectedAt.Equal(day1) {
		t.Errorf("first_seen/collected_at = %v/%v, want %v", got.FirstSeen, got.CollectedAt, day1)
	}
	if !got.LastSeen.Equal(day2) || got.FitScore != 71 || got.FitGrade != "B" || !reflect.DeepEqual(got.Flags, []string{"clearance"}) {
		t.Errorf("computed fields not refreshed: %+v", got)
	}
}

func TestSQLite_UpsertIsIdempotent(t *testing.T) {
	s, conn := openSQLite(t)
	ctx := context.Background()
	rec := record(day1)

	for i := 0; i < 3; i++ {
		if err := s.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert #%d: %v", i, err)
		}
	}
	var jobs, seen int
	conn.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&jobs)
	conn.QueryRow(`SELECT COUNT(*) FROM job_sources_seen`).Scan(&seen)
	if jobs != 1 || seen != 2 {
		t.Errorf("jobs=%d sources_seen=%d, want 1/2", jobs, seen)
	}
}

func TestSQLite_SourcesSeenAccumulate(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()

	rec := record(day1)
	rec.SourceName = "Remotive"
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	rec.SourceName = "Adzuna API,Greenhouse"
	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}

	got, err := s.SourcesSeen(ctx, rec.JobID)
	if err != nil {
		t.Fatalf("SourcesSeen: %v", err)
	}
	want := []string{"Adzuna API", "Greenhouse", "Remotive"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("SourcesSeen = %v, want %v", got, want)
	}
}

func TestSQLite_NilListsStoredEmpty(t *testing.T) {
	s, _ := openSQLite(t)
	ctx := context.Background()
	rec := record(day1)
	rec.SkillsExtracted, rec.MergedFrom, rec.MissingMustHave, rec.Flags = nil, nil, nil, nil

	if err := s.Upsert(ctx, rec); err != nil {
		t.Fatal(err)
	}
	got, err := s.Get(ctx, rec.JobID)
	if err != nil {
		t.Fatal(err)
	}
	if got.SkillsExtracted == nil || len(got.Flags) != 0 || len(got.MergedFrom) != 0 {
		t.Errorf("lists = %v %v %v", got.SkillsExtracted, got.Flags, got.MergedFrom)
	}
}

func TestSQLite_GetUnknown(t *testing.T) {
	s, _ := openSQLite(t)
	if _, err := s.Get(context.Background(), "nope"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// ── RecordRun ───────────────────────────────────────────────────────────────

func TestSQLite_RecordRun(t *testing.T) {
	s, conn := openSQLite(t)
	ctx := context.Background()
	sum := model.RunSummary{
		RunID: "7b0c3a52-2d7e-4a8e-9c55-0f4f3b1d2e11", Profile: "neteng", Mode: model.ModeSearch,
		StartedAt: day1, FinishedAt: day1.Add(time.Minute),
		Found: 12, Collected: 10, Failed: 1, Merged: 2, Filtered: 1, Exported: 7,
		SourceErrors: []model.SourceError{
			{Source: "lever_api", Domain: "jobs.lever.co", Reason: "all companies failed"},
			{Source: "craigslist_rss", Domain: "craigslist.org", Reason: "malformed feed"},
		},
	}
	if err := s.RecordRun(ctx, sum); err != nil {
		t.Fatalf("RecordRun: %v", err)
	}

	var found, exported int
	if err := conn.QueryRow(`SELECT num_found, num_exported FROM runs WHERE run_id = ?`, sum.RunID).
		Scan(&found, &exported); err != nil {
		t.Fatal(err)
	}
	if found != 12 || exported != 7 {
		t.Errorf("found=%d exported=%d", found, exported)
	}

	rows, err := conn.Query(`SELECT domain FROM run_errors WHERE run_id = ? ORDER BY domain`, sum.RunID)
	if err != nil {
		t.Fatal(err)
	}
	defer rows.Close()
	var domains []string
	for rows.Next() {
		var d string
		rows.Scan(&d)
		domains = append(domains, d)
	}
	if !reflect.DeepEqual(domains, []string{"craigslist.org", "jobs.lever.co"}) {
		t.Errorf("run_errors domains = %v", domains)
	}
}
