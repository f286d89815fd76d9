package store

import (
	"fmt"
	"time"
)

// RenderRecord 一次出图请求的历史记录
type RenderRecord struct {
	ID         int64     `json:"id"`
	SessionID  string    `json:"sessionId"`
	PlotType   string    `json:"plotType"`
	Options    string    `json:"options"`
	Status     string    `json:"status"`
	Detail     string    `json:"detail"`
	PNGSize    int64     `json:"pngSize"`
	DurationMS int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// AddRenderRecord 记录一次出图请求
func (s *Store) AddRenderRecord(r *RenderRecord) (int64, error) {
	res, err := s.db.Exec(`
		INSERT INTO render_history (session_id, plot_type, options, status, detail, png_size, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, r.SessionID, r.PlotType, r.Options, r.Status, r.Detail, r.PNGSize, r.DurationMS)
	if err != nil {
		return 0, fmt.Errorf("failed to insert render record: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get render record id: %w", err)
	}
	return id, nil
}

// ListRenderHistory 最近的出图记录，sessionID 为空时不过滤
func (s *Store) ListRenderHistory(sessionID string, limit int) ([]*RenderRecord, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, session_id, plot_type, options, status, detail, png_size, duration_ms, created_at
		FROM render_history
	`
	args := []interface{}{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query render history: %w", err)
	}
	defer rows.Close()

	var records []*RenderRecord
	for rows.Next() {
		r := &RenderRecord{}
		if err := rows.Scan(&r.ID, &r.SessionID, &r.PlotType, &r.Options, &r.Status,
			&r.Detail, &r.PNGSize, &r.DurationMS, &r.CreatedAt); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// CountRenders 按状态统计出图次数
func (s *Store) CountRenders() (map[string]int, error) {
	rows, err := s.db.Query("SELECT status, COUNT(*) FROM render_history GROUP BY status")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
