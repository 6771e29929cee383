package repository

import (
	"context"
	"fmt"
	"strings"

	"rbac-admin/internal/model"
)

const (
	defaultLoginLogLimit = 50
	maxLoginLogLimit     = 200
	maxLoginLogPage      = 100000
)

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

type LoginLogRepository struct {
	db DBTX
}

func NewLoginLogRepository(db DBTX) *LoginLogRepository {
	return &LoginLogRepository{db: db}
}

func (r *LoginLogRepository) Create(ctx context.Context, entry model.LoginLog) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO login_logs (username, ip, location, user_agent, status, message, login_time)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		entry.Username, entry.IP, entry.Location, entry.UserAgent, entry.Status,
		model.TruncateLoginMessage(entry.Message), entry.LoginTime)
	if err != nil {
		return fmt.Errorf("create login log: %w", err)
	}
	return nil
}

func (r *LoginLogRepository) Query(ctx context.Context, query model.LoginLogQuery) ([]model.LoginLog, model.Meta, error) {
	query = normalizeLoginLogQuery(query)

	where := make([]string, 0)
	args := make([]any, 0)
	argIdx := 1

	if username := strings.TrimSpace(query.Username); username != "" {
		where = append(where, fmt.Sprintf(`lower(username) LIKE lower($%d) ESCAPE '\'`, argIdx))
		args = append(args, "%"+likeEscaper.Replace(username)+"%")
		argIdx++
	}
	if query.Status != nil {
		where = append(where, fmt.Sprintf("status = $%d", argIdx))
		args = append(args, *query.Status)
		argIdx++
	}
	if query.From != nil {
		where = append(where, fmt.Sprintf("login_time >= $%d", argIdx))
		args = append(args, *query.From)
		argIdx++
	}
	if query.To != nil {
		where = append(where, fmt.Sprintf("login_time <= $%d", argIdx))
		args = append(args, *query.To)
		argIdx++
	}

	whereClause := ""
	if len(where) > 0 {
		whereClause = "WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := r.db.QueryRow(ctx, "SELECT COUNT(*) FROM login_logs "+whereClause, args...).Scan(&total); err != nil {
		return nil, model.Meta{}, fmt.Errorf("count login logs: %w", err)
	}

	totalPages := 0
	if total > 0 {
		totalPages = (total + query.Limit - 1) / query.Limit
	}
	meta := model.Meta{Page: query.Page, Limit: query.Limit, Total: total, TotalPages: totalPages}

	offset := (query.Page - 1) * query.Limit
	dataQuery := fmt.Sprintf(
		`SELECT id, username, ip, location, user_agent, status, message, login_time
		 FROM login_logs %s
		 ORDER BY login_time DESC
		 LIMIT $%d OFFSET $%d`, whereClause, argIdx, argIdx+1)
	args = append(args, query.Limit, offset)

	rows, err := r.db.Query(ctx, dataQuery, args...)
	if err != nil {
		return nil, model.Meta{}, fmt.Errorf("query login logs: %w", err)
	}
	defer rows.Close()

	entries := make([]model.LoginLog, 0)
	for rows.Next() {
		var e model.LoginLog
		if err := rows.Scan(&e.ID, &e.Username, &e.IP, &e.Location, &e.UserAgent,
			&e.Status, &e.Message, &e.LoginTime); err != nil {
			return nil, model.Meta{}, fmt.Errorf("scan login log: %w", err)
		}
		e.LoginTime = e.LoginTime.UTC()
		entries = append(entries, e)
	}

	return entries, meta, rows.Err()
}

// normalizeLoginLogQuery bounds page and limit so the OFFSET stays small and
// non-negative.
func normalizeLoginLogQuery(query model.LoginLogQuery) model.LoginLogQuery {
	if query.Limit <= 0 {
		query.Limit = defaultLoginLogLimit
	}
	if query.Limit > maxLoginLogLimit {
		query.Limit = maxLoginLogLimit
	}
	if query.Page < 1 {
		query.Page = 1
	}
	if query.Page > maxLoginLogPage {
		query.Page = maxLoginLogPage
	}
	return query
}
