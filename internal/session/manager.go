// Package session 管理每个会话独立的工作目录：
// 上传文件落盘、子目录聚合、输出暂存，生命周期由调用方负责。
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrSessionNotFound 会话不存在或已销毁
var ErrSessionNotFound = errors.New("session not found")

// Manager 会话管理器。所有会话根目录挂在 rootDir 之下，互不共享。
type Manager struct {
	rootDir string

	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager 创建会话管理器
func NewManager(rootDir string) *Manager {
	return &Manager{
		rootDir:  rootDir,
		sessions: make(map[string]*Session),
	}
}

// Create 创建新会话。根目录懒创建，首次写入时才落盘。
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("s_%s", uuid.New().String()[:8])
	s := &Session{
		ID:        id,
		root:      filepath.Join(m.rootDir, id),
		CreatedAt: time.Now().UTC(),
	}
	m.sessions[id] = s
	return s
}

// Get 查找会话
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return s, ok
}

// Delete 销毁会话并删除工作目录
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	if ok {
		delete(m.sessions, id)
	}
	m.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	return os.RemoveAll(s.root)
}

// Count 当前活跃会话数
func (m *Manager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// CleanupAll 进程退出前清空全部会话目录
func (m *Manager) CleanupAll() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for id, s := range m.sessions {
		_ = os.RemoveAll(s.root)
		delete(m.sessions, id)
	}
}

// Session 单个会话：一块隔离的工作目录
type Session struct {
	ID        string
	CreatedAt time.Time

	root string
	mu   sync.Mutex
}

// Root 会话根目录（可能尚未创建）
func (s *Session) Root() string {
	return s.root
}

// Stage 把上传内容写入会话目录，返回绝对路径。
// blob 为 nil 表示“未提供”，返回空路径而非错误。
// subdir 非空时自动创建；同名文件直接覆盖。
func (s *Session) Stage(blob []byte, name, subdir string) (string, error) {
	if blob == nil {
		return "", nil
	}

	name = filepath.Base(strings.TrimSpace(name))
	if name == "" || name == "." || name == string(filepath.Separator) {
		return "", errors.New("invalid file name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := s.root
	if subdir != "" {
		dir = filepath.Join(dir, filepath.Base(subdir))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}

	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, blob, 0644); err != nil {
		return "", fmt.Errorf("write staged file: %w", err)
	}
	return path, nil
}

// Dir 返回会话内子目录的路径（不保证已存在）
func (s *Session) Dir(subdir string) string {
	if subdir == "" {
		return s.root
	}
	return filepath.Join(s.root, filepath.Base(subdir))
}

// EnsureDir 确保会话内子目录存在并返回路径
func (s *Session) EnsureDir(subdir string) (string, error) {
	dir := s.Dir(subdir)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// Contains 判断路径是否位于该会话目录之内。
// 客户端回传的路径一律先过此检查，防止越界访问。
func (s *Session) Contains(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	root, err := filepath.Abs(s.root)
	if err != nil {
		return false
	}
	rel, err := filepath.Rel(root, abs)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
