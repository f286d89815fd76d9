package store

import (
	"database/sql"
	"fmt"
	"strconv"
)

// GetConfig 获取配置项
func (s *Store) GetConfig(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", fmt.Errorf("config key not found: %s", key)
		}
		return "", err
	}
	return value, nil
}

// GetConfigInt 获取整数配置项
func (s *Store) GetConfigInt(key string) (int, error) {
	value, err := s.GetConfig(key)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(value)
}

// GetConfigFloat 获取浮点数配置项
func (s *Store) GetConfigFloat(key string) (float64, error) {
	value, err := s.GetConfig(key)
	if err != nil {
		return 0, err
	}
	return strconv.ParseFloat(value, 64)
}

// SetConfig 设置配置项
func (s *Store) SetConfig(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = ?, updated_at = CURRENT_TIMESTAMP
	`, key, value, value)
	return err
}

// SetConfigInt 设置整数配置项
func (s *Store) SetConfigInt(key string, value int) error {
	return s.SetConfig(key, strconv.Itoa(value))
}

// SetConfigFloat 设置浮点数配置项
func (s *Store) SetConfigFloat(key string, value float64) error {
	return s.SetConfig(key, strconv.FormatFloat(value, 'f', -1, 64))
}

// PlotDefaults 出图默认参数，Web 端新会话的初始值
type PlotDefaults struct {
	DPI       int     `json:"dpi"`
	Cmap      string  `json:"cmap"`
	FigWidth  float64 `json:"figWidth"`
	FigHeight float64 `json:"figHeight"`
}

// GetPlotDefaults 读取出图默认参数，缺失项用 fallback 补齐
func (s *Store) GetPlotDefaults(fallback PlotDefaults) PlotDefaults {
	out := fallback
	if v, err := s.GetConfigInt("plot_dpi"); err == nil {
		out.DPI = v
	}
	if v, err := s.GetConfig("plot_cmap"); err == nil {
		out.Cmap = v
	}
	if v, err := s.GetConfigFloat("plot_fig_width"); err == nil {
		out.FigWidth = v
	}
	if v, err := s.GetConfigFloat("plot_fig_height"); err == nil {
		out.FigHeight = v
	}
	return out
}

// SetPlotDefaults 持久化出图默认参数
func (s *Store) SetPlotDefaults(d PlotDefaults) error {
	if err := s.SetConfigInt("plot_dpi", d.DPI); err != nil {
		return err
	}
	if err := s.SetConfig("plot_cmap", d.Cmap); err != nil {
		return err
	}
	if err := s.SetConfigFloat("plot_fig_width", d.FigWidth); err != nil {
		return err
	}
	return s.SetConfigFloat("plot_fig_height", d.FigHeight)
}

// GetAllConfig 获取所有配置项
func (s *Store) GetAllConfig() (map[string]string, error) {
	rows, err := s.db.Query("SELECT key, value FROM config")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	config := make(map[string]string)
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return nil, err
		}
		config[key] = value
	}
	return config, rows.Err()
}
