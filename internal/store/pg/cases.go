package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bank.com/mop/internal/cases"
)

const caseColumns = `id, business_name, business_type, registration_number, merchant_category,
	business_address, director_name, director_ic, director_phone, director_email,
	status, assigned_to, priority, created_by, created_at, updated_at`

func scanCase(row rowScanner) (cases.Case, error) {
	var c cases.Case
	err := row.Scan(
		&c.ID, &c.BusinessName, &c.BusinessType, &c.RegistrationNumber, &c.MerchantCategory,
		&c.BusinessAddress, &c.DirectorName, &c.DirectorIC, &c.DirectorPhone, &c.DirectorEmail,
		&c.Status, &c.AssignedTo, &c.Priority, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

func (s *Store) ListCases(ctx context.Context, filter cases.Filter) ([]cases.Case, error) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	if filter.Status != "" {
		conds = append(conds, fmt.Sprintf("status = $%d", idx))
		args = append(args, filter.Status)
		idx++
	}
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf("(business_name ilike $%d or id ilike $%d)", idx, idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	query := `select ` + caseColumns + ` from cases`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by updated_at desc"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []cases.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i := range result {
		if err := s.loadCaseDetails(ctx, &result[i]); err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (s *Store) GetCase(ctx context.Context, id string) (cases.Case, error) {
	c, err := scanCase(s.db.QueryRowContext(ctx, `select `+caseColumns+` from cases where id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return cases.Case{}, cases.ErrNotFound
	}
	if err != nil {
		return cases.Case{}, err
	}
	if err := s.loadCaseDetails(ctx, &c); err != nil {
		return cases.Case{}, err
	}
	return c, nil
}

func (s *Store) loadCaseDetails(ctx context.Context, c *cases.Case) error {
	docRows, err := s.db.QueryContext(ctx, `
		select name, type, uploaded_at from case_documents
		where case_id = $1
		order by uploaded_at
	`, c.ID)
	if err != nil {
		return err
	}
	defer docRows.Close()

	c.Documents = []cases.Document{}
	for docRows.Next() {
		var d cases.Document
		if err := docRows.Scan(&d.Name, &d.Type, &d.UploadedAt); err != nil {
			return err
		}
		c.Documents = append(c.Documents, d)
	}
	if err := docRows.Err(); err != nil {
		return err
	}

	histRows, err := s.db.QueryContext(ctx, `
		select ts, action, coalesce(actor, '') from case_history
		where case_id = $1
		order by ts desc, id desc
	`, c.ID)
	if err != nil {
		return err
	}
	defer histRows.Close()

	c.History = []cases.HistoryEntry{}
	for histRows.Next() {
		var h cases.HistoryEntry
		if err := histRows.Scan(&h.Time, &h.Action, &h.Actor); err != nil {
			return err
		}
		c.History = append(c.History, h)
	}
	return histRows.Err()
}

func (s *Store) CreateCase(ctx context.Context, c cases.Case) (cases.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into cases (id, business_name, business_type, registration_number, merchant_category,
			business_address, director_name, director_ic, director_phone, director_email,
			status, assigned_to, priority, created_by, created_at, updated_at)
		values ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
	`, c.ID, c.BusinessName, c.BusinessType, c.RegistrationNumber, c.MerchantCategory,
		c.BusinessAddress, c.DirectorName, c.DirectorIC, c.DirectorPhone, c.DirectorEmail,
		c.Status, c.AssignedTo, c.Priority, c.CreatedBy, c.CreatedAt, c.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return cases.Case{}, cases.ErrConflict
		}
		return cases.Case{}, err
	}
	for _, h := range c.History {
		if _, err := tx.ExecContext(ctx, `
			insert into case_history (case_id, ts, action, actor)
			values ($1, $2, $3, nullif($4, ''))
		`, c.ID, h.Time, h.Action, h.Actor); err != nil {
			return cases.Case{}, err
		}
	}
	if err := tx.Commit(); err != nil {
		return cases.Case{}, err
	}
	return s.GetCase(ctx, c.ID)
}

func (s *Store) UpdateCase(ctx context.Context, id string, upd cases.Update) (cases.Case, error) {
	var (
		setClauses []string
		args       []any
		idx        = 1
	)
	add := func(column string, value any) {
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", column, idx))
		args = append(args, value)
		idx++
	}
	if upd.BusinessName != nil {
		add("business_name", *upd.BusinessName)
	}
	if upd.BusinessType != nil {
		add("business_type", *upd.BusinessType)
	}
	if upd.RegistrationNumber != nil {
		add("registration_number", *upd.RegistrationNumber)
	}
	if upd.MerchantCategory != nil {
		add("merchant_category", *upd.MerchantCategory)
	}
	if upd.BusinessAddress != nil {
		add("business_address", *upd.BusinessAddress)
	}
	if upd.DirectorName != nil {
		add("director_name", *upd.DirectorName)
	}
	if upd.DirectorIC != nil {
		add("director_ic", *upd.DirectorIC)
	}
	if upd.DirectorPhone != nil {
		add("director_phone", *upd.DirectorPhone)
	}
	if upd.DirectorEmail != nil {
		add("director_email", *upd.DirectorEmail)
	}
	if upd.AssignedTo != nil {
		add("assigned_to", *upd.AssignedTo)
	}
	if upd.Priority != nil {
		add("priority", *upd.Priority)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update cases set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			return cases.Case{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return cases.Case{}, err
		}
		if aff == 0 {
			return cases.Case{}, cases.ErrNotFound
		}
	}
	return s.GetCase(ctx, id)
}

// Transition updates the status (when non-empty) and appends the history
// entry in one transaction.
func (s *Store) Transition(ctx context.Context, id string, status string, entry cases.HistoryEntry) (cases.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if status != "" {
		res, err = tx.ExecContext(ctx, `update cases set status = $2, updated_at = $3 where id = $1`, id, status, entry.Time)
	} else {
		res, err = tx.ExecContext(ctx, `update cases set updated_at = $2 where id = $1`, id, entry.Time)
	}
	if err != nil {
		return cases.Case{}, err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return cases.Case{}, err
	}
	if aff == 0 {
		return cases.Case{}, cases.ErrNotFound
	}
	if _, err := tx.ExecContext(ctx, `
		insert into case_history (case_id, ts, action, actor)
		values ($1, $2, $3, nullif($4, ''))
	`, id, entry.Time, entry.Action, entry.Actor); err != nil {
		return cases.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return cases.Case{}, err
	}
	return s.GetCase(ctx, id)
}

func (s *Store) AddDocument(ctx context.Context, id string, doc cases.Document) (cases.Case, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return cases.Case{}, err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		insert into case_documents (case_id, name, type, uploaded_at)
		values ($1, $2, $3, $4)
	`, id, doc.Name, doc.Type, doc.UploadedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrForeignKeyViolation {
			return cases.Case{}, cases.ErrNotFound
		}
		return cases.Case{}, err
	}
	if _, err := tx.ExecContext(ctx, `update cases set updated_at = $2 where id = $1`, id, doc.UploadedAt); err != nil {
		return cases.Case{}, err
	}
	if err := tx.Commit(); err != nil {
		return cases.Case{}, err
	}
	return s.GetCase(ctx, id)
}

// NextCaseSequence bumps and returns the per-year counter. The upsert takes
// a row lock, so concurrent creators get distinct values.
func (s *Store) NextCaseSequence(ctx context.Context, year int) (int, error) {
	var seq int
	err := s.db.QueryRowContext(ctx, `
		insert into case_sequences (year, seq)
		values ($1, 1)
		on conflict (year) do update set seq = case_sequences.seq + 1
		returning seq
	`, year).Scan(&seq)
	if err != nil {
		return 0, err
	}
	return seq, nil
}
