package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"jobwatch-engine/internal/domain"
)

type UpsertResult int

const (
	Created UpsertResult = iota
	Updated
)

func (r UpsertResult) String() string {
	if r == Created {
		return "created"
	}
	return "updated"
}

// RecordKey identifies one stored record.
type RecordKey struct {
	Source string
	JobID  string
}

// Upsert writes one observation keyed by (source, job_id).
//
// Created: first_seen_at = last_seen_at = now, is_new = 1.
// Updated: mutable fields overwritten, last_seen_at = now; first_seen_at and
// is_new are never touched by the crawl path.
func (s *Store) Upsert(ctx context.Context, rec *domain.JobRecord) (UpsertResult, error) {
	now := time.Now().UTC().Format(time.RFC3339)

	_, err := s.db.ExecContext(ctx, `
INSERT OR IGNORE INTO jobs (
  source, job_id, company_name, company_name_kana, postal_code,
  address_pref, address_city, address_detail, phone, phone_normalized, fax,
  job_category, employment_type, salary, working_hours, holidays,
  work_location, business_description, job_description, requirements,
  hiring_count, contact_name, contact_email, page_url, employee_count,
  first_seen_at, last_seen_at, is_new
) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,1);`,
		rec.Source, rec.JobID, rec.CompanyName, rec.CompanyNameKana, rec.PostalCode,
		rec.AddressPref, rec.AddressCity, rec.AddressDetail, rec.Phone, rec.PhoneNormalized, rec.Fax,
		rec.JobCategory, rec.EmploymentType, rec.Salary, rec.WorkingHours, rec.Holidays,
		rec.WorkLocation, rec.BusinessDesc, rec.JobDesc, rec.Requirements,
		rec.HiringCount, rec.ContactName, rec.ContactEmail, rec.PageURL, nullableInt(rec.EmployeeCount),
		now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert job: %w", err)
	}

	// SQLite doesn't report rows affected reliably with IGNORE across
	// drivers; SELECT changes() does.
	var changes int
	if err := s.db.QueryRowContext(ctx, `SELECT changes();`).Scan(&changes); err != nil {
		return 0, fmt.Errorf("insert job changes: %w", err)
	}
	if changes > 0 {
		return Created, nil
	}

	_, err = s.db.ExecContext(ctx, `
UPDATE jobs SET
  company_name = ?, company_name_kana = ?, postal_code = ?,
  address_pref = ?, address_city = ?, address_detail = ?,
  phone = ?, phone_normalized = ?, fax = ?,
  job_category = ?, employment_type = ?, salary = ?,
  working_hours = ?, holidays = ?, work_location = ?,
  business_description = ?, job_description = ?, requirements = ?,
  hiring_count = ?, contact_name = ?, contact_email = ?,
  page_url = ?, employee_count = ?, last_seen_at = ?
WHERE source = ? AND job_id = ?;`,
		rec.CompanyName, rec.CompanyNameKana, rec.PostalCode,
		rec.AddressPref, rec.AddressCity, rec.AddressDetail,
		rec.Phone, rec.PhoneNormalized, rec.Fax,
		rec.JobCategory, rec.EmploymentType, rec.Salary,
		rec.WorkingHours, rec.Holidays, rec.WorkLocation,
		rec.BusinessDesc, rec.JobDesc, rec.Requirements,
		rec.HiringCount, rec.ContactName, rec.ContactEmail,
		rec.PageURL, nullableInt(rec.EmployeeCount), now,
		rec.Source, rec.JobID,
	)
	if err != nil {
		return 0, fmt.Errorf("update job: %w", err)
	}
	return Updated, nil
}

// MarkExported clears is_new for the given records. Called by the export
// path only.
func (s *Store) MarkExported(ctx context.Context, keys []RecordKey) error {
	if len(keys) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `UPDATE jobs SET is_new = 0 WHERE source = ? AND job_id = ?;`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, k := range keys {
		if _, err := stmt.ExecContext(ctx, k.Source, k.JobID); err != nil {
			return fmt.Errorf("mark exported %s:%s: %w", k.Source, k.JobID, err)
		}
	}
	return tx.Commit()
}

type Criteria struct {
	Source  string    // "" = all
	OnlyNew bool      // is_new records only
	Since   time.Time // zero = no lower bound on last_seen_at
	Limit   int       // <= 0 = no limit
}

// Query is the read side used by the filter pipeline and exporter. Never
// mutates. Results are ordered by (source, job_id) so downstream output is
// stable.
func (s *Store) Query(ctx context.Context, c Criteria) ([]domain.JobRecord, error) {
	var where []string
	var args []any
	if c.Source != "" {
		where = append(where, "source = ?")
		args = append(args, c.Source)
	}
	if c.OnlyNew {
		where = append(where, "is_new = 1")
	}
	if !c.Since.IsZero() {
		where = append(where, "last_seen_at >= ?")
		args = append(args, c.Since.UTC().Format(time.RFC3339))
	}

	q := `
SELECT source, job_id, company_name, company_name_kana, postal_code,
  address_pref, address_city, address_detail, phone, phone_normalized, fax,
  job_category, employment_type, salary, working_hours, holidays,
  work_location, business_description, job_description, requirements,
  hiring_count, contact_name, contact_email, page_url, employee_count,
  first_seen_at, last_seen_at, is_new
FROM jobs`
	if len(where) > 0 {
		q += "\nWHERE " + strings.Join(where, " AND ")
	}
	q += "\nORDER BY source, job_id"
	if c.Limit > 0 {
		q += "\nLIMIT ?"
		args = append(args, c.Limit)
	}

	rows, err := s.db.QueryContext(ctx, q+";", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.JobRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// CountNew returns how many stored records still carry is_new.
func (s *Store) CountNew(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs WHERE is_new = 1;`).Scan(&n)
	return n, err
}

func scanRecord(rows *sql.Rows) (domain.JobRecord, error) {
	var rec domain.JobRecord
	var employees sql.NullInt64
	var firstSeen, lastSeen string
	var isNew int

	err := rows.Scan(
		&rec.Source, &rec.JobID, &rec.CompanyName, &rec.CompanyNameKana, &rec.PostalCode,
		&rec.AddressPref, &rec.AddressCity, &rec.AddressDetail, &rec.Phone, &rec.PhoneNormalized, &rec.Fax,
		&rec.JobCategory, &rec.EmploymentType, &rec.Salary, &rec.WorkingHours, &rec.Holidays,
		&rec.WorkLocation, &rec.BusinessDesc, &rec.JobDesc, &rec.Requirements,
		&rec.HiringCount, &rec.ContactName, &rec.ContactEmail, &rec.PageURL, &employees,
		&firstSeen, &lastSeen, &isNew,
	)
	if err != nil {
		return rec, err
	}
	if employees.Valid {
		n := int(employees.Int64)
		rec.EmployeeCount = &n
	}
	rec.FirstSeenAt, _ = time.Parse(time.RFC3339, firstSeen)
	rec.LastSeenAt, _ = time.Parse(time.RFC3339, lastSeen)
	rec.IsNew = isNew == 1
	return rec, nil
}

func nullableInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
