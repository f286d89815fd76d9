package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/pelletier/go-toml/v2"
)

// AppConfig 应用配置
type AppConfig struct {
	Server ServerConfig `toml:"server"`
	Data   DataConfig   `toml:"data"`
	Plot   PlotConfig   `toml:"plot"`
	Upload UploadConfig `toml:"upload"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port    int  `toml:"port"`
	DevMode bool `toml:"dev_mode"`
}

// DataConfig 数据配置
type DataConfig struct {
	DataDir string `toml:"data_dir"`
}

// PlotConfig 出图默认参数
type PlotConfig struct {
	DPI       int     `toml:"dpi"`
	Cmap      string  `toml:"cmap"`
	FigWidth  float64 `toml:"fig_width"`
	FigHeight float64 `toml:"fig_height"`
}

// UploadConfig 上传限制
type UploadConfig struct {
	MaxFileMB int `toml:"max_file_mb"`
}

// DefaultConfig 默认配置
func DefaultConfig() *AppConfig {
	return &AppConfig{
		Server: ServerConfig{
			Port:    20270,
			DevMode: false,
		},
		Data: DataConfig{
			DataDir: "data",
		},
		Plot: PlotConfig{
			DPI:       100,
			Cmap:      "tab10",
			FigWidth:  12,
			FigHeight: 6,
		},
		Upload: UploadConfig{
			MaxFileMB: 64,
		},
	}
}

// GetExeDir 获取可执行文件所在目录
func GetExeDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", err
	}
	return filepath.Dir(exe), nil
}

// LoadConfig 从可执行文件同目录的 config.toml 加载配置。
// 文件不存在时用默认值，QEPWEB_* 环境变量最后覆盖。
func LoadConfig() (*AppConfig, error) {
	config := DefaultConfig()

	exeDir, err := GetExeDir()
	if err != nil {
		// 无法获取可执行文件目录，使用当前目录
		exeDir = "."
	}
	configPath := filepath.Join(exeDir, "config.toml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		// 配置文件不存在，使用默认配置
	} else if err := toml.Unmarshal(data, config); err != nil {
		return nil, err
	}

	applyEnvOverrides(config)
	return config, nil
}

// applyEnvOverrides 环境变量覆盖（用于 E2E / 本地运行）
func applyEnvOverrides(config *AppConfig) {
	if v := os.Getenv("QEPWEB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			config.Server.Port = port
		}
	}
	if v := os.Getenv("QEPWEB_DATA_DIR"); v != "" {
		config.Data.DataDir = v
	}
	if v := os.Getenv("QEPWEB_DEV_MODE"); v != "" {
		config.Server.DevMode = v == "1" || v == "true"
	}
}

// SaveConfig 保存配置到 config.toml
func SaveConfig(config *AppConfig) error {
	exeDir, err := GetExeDir()
	if err != nil {
		exeDir = "."
	}
	configPath := filepath.Join(exeDir, "config.toml")

	data, err := toml.Marshal(config)
	if err != nil {
		return err
	}
	return os.WriteFile(configPath, data, 0644)
}

// EnsureDataDir 确保数据目录与子目录存在，返回数据目录绝对路径。
// data_dir 为相对路径时挂在可执行文件目录下。
func EnsureDataDir(config *AppConfig) (string, error) {
	dataDir := config.Data.DataDir
	if !filepath.IsAbs(dataDir) {
		exeDir, err := GetExeDir()
		if err != nil {
			exeDir = "."
		}
		dataDir = filepath.Join(exeDir, dataDir)
	}

	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return "", err
	}

	// 会话暂存 / 出图产物 / 工具产物
	subdirs := []string{"sessions", "plots", "tools"}
	for _, subdir := range subdirs {
		if err := os.MkdirAll(filepath.Join(dataDir, subdir), 0755); err != nil {
			return "", err
		}
	}
	return dataDir, nil
}
