package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"bank.com/mop/internal/params"
)

func (s *Store) ListBusinessTypes(ctx context.Context, filter params.Filter) ([]params.BusinessType, error) {
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
		conds = append(conds, fmt.Sprintf("(code ilike $%d or name ilike $%d)", idx, idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	query := `select id, code, name, description, status, created_at, updated_at from business_types`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by code"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []params.BusinessType
	for rows.Next() {
		var bt params.BusinessType
		if err := rows.Scan(&bt.ID, &bt.Code, &bt.Name, &bt.Description, &bt.Status, &bt.CreatedAt, &bt.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, bt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetBusinessType(ctx context.Context, id string) (params.BusinessType, error) {
	var bt params.BusinessType
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, description, status, created_at, updated_at
		from business_types where id = $1
	`, id).Scan(&bt.ID, &bt.Code, &bt.Name, &bt.Description, &bt.Status, &bt.CreatedAt, &bt.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return params.BusinessType{}, params.ErrNotFound
	}
	if err != nil {
		return params.BusinessType{}, err
	}
	return bt, nil
}

func (s *Store) CreateBusinessType(ctx context.Context, bt params.BusinessType) (params.BusinessType, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into business_types (id, code, name, description, status)
		values ($1, $2, $3, $4, $5)
		returning id, code, name, description, status, created_at, updated_at
	`, bt.ID, bt.Code, bt.Name, bt.Description, bt.Status)
	var created params.BusinessType
	if err := row.Scan(&created.ID, &created.Code, &created.Name, &created.Description, &created.Status, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return params.BusinessType{}, params.ErrConflict
		}
		return params.BusinessType{}, err
	}
	return created, nil
}

func (s *Store) UpdateBusinessType(ctx context.Context, id string, upd params.BusinessTypeUpdate) (params.BusinessType, error) {
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
	if upd.Code != nil {
		add("code", *upd.Code)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update business_types set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return params.BusinessType{}, params.ErrConflict
			}
			return params.BusinessType{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return params.BusinessType{}, err
		}
		if aff == 0 {
			return params.BusinessType{}, params.ErrNotFound
		}
	}
	return s.GetBusinessType(ctx, id)
}

func (s *Store) DeleteBusinessType(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "business_types", id)
}

func (s *Store) ListMerchantCategories(ctx context.Context, filter params.Filter) ([]params.MerchantCategory, error) {
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
	if filter.RiskLevel != "" {
		conds = append(conds, fmt.Sprintf("risk_level = $%d", idx))
		args = append(args, filter.RiskLevel)
		idx++
	}
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf("(code ilike $%d or name ilike $%d)", idx, idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	query := `select id, code, name, description, risk_level, status, created_at, updated_at from merchant_categories`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by code"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []params.MerchantCategory
	for rows.Next() {
		var mc params.MerchantCategory
		if err := rows.Scan(&mc.ID, &mc.Code, &mc.Name, &mc.Description, &mc.RiskLevel, &mc.Status, &mc.CreatedAt, &mc.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, mc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetMerchantCategory(ctx context.Context, id string) (params.MerchantCategory, error) {
	var mc params.MerchantCategory
	err := s.db.QueryRowContext(ctx, `
		select id, code, name, description, risk_level, status, created_at, updated_at
		from merchant_categories where id = $1
	`, id).Scan(&mc.ID, &mc.Code, &mc.Name, &mc.Description, &mc.RiskLevel, &mc.Status, &mc.CreatedAt, &mc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return params.MerchantCategory{}, params.ErrNotFound
	}
	if err != nil {
		return params.MerchantCategory{}, err
	}
	return mc, nil
}

func (s *Store) CreateMerchantCategory(ctx context.Context, mc params.MerchantCategory) (params.MerchantCategory, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into merchant_categories (id, code, name, description, risk_level, status)
		values ($1, $2, $3, $4, $5, $6)
		returning id, code, name, description, risk_level, status, created_at, updated_at
	`, mc.ID, mc.Code, mc.Name, mc.Description, mc.RiskLevel, mc.Status)
	var created params.MerchantCategory
	if err := row.Scan(&created.ID, &created.Code, &created.Name, &created.Description, &created.RiskLevel, &created.Status, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return params.MerchantCategory{}, params.ErrConflict
		}
		return params.MerchantCategory{}, err
	}
	return created, nil
}

func (s *Store) UpdateMerchantCategory(ctx context.Context, id string, upd params.MerchantCategoryUpdate) (params.MerchantCategory, error) {
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
	if upd.Code != nil {
		add("code", *upd.Code)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.RiskLevel != nil {
		add("risk_level", *upd.RiskLevel)
	}
	if upd.Status != nil {
		add("status", *upd.Status)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update merchant_categories set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return params.MerchantCategory{}, params.ErrConflict
			}
			return params.MerchantCategory{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return params.MerchantCategory{}, err
		}
		if aff == 0 {
			return params.MerchantCategory{}, params.ErrNotFound
		}
	}
	return s.GetMerchantCategory(ctx, id)
}

func (s *Store) DeleteMerchantCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "merchant_categories", id)
}

func (s *Store) ListRiskCategories(ctx context.Context, filter params.Filter) ([]params.RiskCategory, error) {
	var (
		conds []string
		args  []any
		idx   = 1
	)
	if filter.Query != "" {
		conds = append(conds, fmt.Sprintf("name ilike $%d", idx))
		args = append(args, "%"+filter.Query+"%")
		idx++
	}
	query := `select id, level, name, score_min, score_max, description, actions_required, created_at, updated_at from risk_categories`
	if len(conds) > 0 {
		query += " where " + strings.Join(conds, " and ")
	}
	query += " order by level"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []params.RiskCategory
	for rows.Next() {
		var rc params.RiskCategory
		if err := rows.Scan(&rc.ID, &rc.Level, &rc.Name, &rc.ScoreMin, &rc.ScoreMax, &rc.Description, &rc.ActionsRequired, &rc.CreatedAt, &rc.UpdatedAt); err != nil {
			return nil, err
		}
		result = append(result, rc)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

func (s *Store) GetRiskCategory(ctx context.Context, id string) (params.RiskCategory, error) {
	var rc params.RiskCategory
	err := s.db.QueryRowContext(ctx, `
		select id, level, name, score_min, score_max, description, actions_required, created_at, updated_at
		from risk_categories where id = $1
	`, id).Scan(&rc.ID, &rc.Level, &rc.Name, &rc.ScoreMin, &rc.ScoreMax, &rc.Description, &rc.ActionsRequired, &rc.CreatedAt, &rc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return params.RiskCategory{}, params.ErrNotFound
	}
	if err != nil {
		return params.RiskCategory{}, err
	}
	return rc, nil
}

func (s *Store) CreateRiskCategory(ctx context.Context, rc params.RiskCategory) (params.RiskCategory, error) {
	row := s.db.QueryRowContext(ctx, `
		insert into risk_categories (id, level, name, score_min, score_max, description, actions_required)
		values ($1, $2, $3, $4, $5, $6, $7)
		returning id, level, name, score_min, score_max, description, actions_required, created_at, updated_at
	`, rc.ID, rc.Level, rc.Name, rc.ScoreMin, rc.ScoreMax, rc.Description, rc.ActionsRequired)
	var created params.RiskCategory
	if err := row.Scan(&created.ID, &created.Level, &created.Name, &created.ScoreMin, &created.ScoreMax, &created.Description, &created.ActionsRequired, &created.CreatedAt, &created.UpdatedAt); err != nil {
		if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
			return params.RiskCategory{}, params.ErrConflict
		}
		return params.RiskCategory{}, err
	}
	return created, nil
}

func (s *Store) UpdateRiskCategory(ctx context.Context, id string, upd params.RiskCategoryUpdate) (params.RiskCategory, error) {
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
	if upd.Level != nil {
		add("level", *upd.Level)
	}
	if upd.Name != nil {
		add("name", *upd.Name)
	}
	if upd.ScoreMin != nil {
		add("score_min", *upd.ScoreMin)
	}
	if upd.ScoreMax != nil {
		add("score_max", *upd.ScoreMax)
	}
	if upd.Description != nil {
		add("description", *upd.Description)
	}
	if upd.ActionsRequired != nil {
		add("actions_required", *upd.ActionsRequired)
	}
	if len(setClauses) > 0 {
		setClauses = append(setClauses, "updated_at = now()")
		query := fmt.Sprintf(`update risk_categories set %s where id = $%d`, strings.Join(setClauses, ", "), idx)
		args = append(args, id)
		res, err := s.db.ExecContext(ctx, query, args...)
		if err != nil {
			if pgErr, ok := maybePgError(err); ok && pgErr.Code == pgErrUniqueViolation {
				return params.RiskCategory{}, params.ErrConflict
			}
			return params.RiskCategory{}, err
		}
		aff, err := res.RowsAffected()
		if err != nil {
			return params.RiskCategory{}, err
		}
		if aff == 0 {
			return params.RiskCategory{}, params.ErrNotFound
		}
	}
	return s.GetRiskCategory(ctx, id)
}

func (s *Store) DeleteRiskCategory(ctx context.Context, id string) error {
	return s.deleteByID(ctx, "risk_categories", id)
}

func (s *Store) deleteByID(ctx context.Context, table, id string) error {
	res, err := s.db.ExecContext(ctx, fmt.Sprintf(`delete from %s where id = $1`, table), id)
	if err != nil {
		return err
	}
	aff, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if aff == 0 {
		return params.ErrNotFound
	}
	return nil
}
