package sentinel

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Journal 断网期间的待同步事件日志
// 逐行追加并立即落盘，进程崩溃也不丢已确认的动检记录
type Journal struct {
	m    sync.Mutex
	path string
	now  func() time.Time
}

func NewJournal(path string) *Journal {
	return &Journal{path: path, now: time.Now}
}

// Append 追加一条动检记录并 fsync
func (j *Journal) Append(ratio float64) error {
	j.m.Lock()
	defer j.m.Unlock()

	if dir := filepath.Dir(j.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create journal dir: %w", err)
		}
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	line := fmt.Sprintf("%s CONFIRMED MOTION (ratio=%.4f) - buffered event\n",
		j.now().UTC().Format(time.RFC3339), ratio)
	if _, err := f.WriteString(line); err != nil {
		return fmt.Errorf("failed to append journal: %w", err)
	}
	return f.Sync()
}

// Pending 读取全部待同步记录，文件不存在视为空
func (j *Journal) Pending() ([]string, error) {
	j.m.Lock()
	defer j.m.Unlock()

	f, err := os.Open(j.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines, scanner.Err()
}

// Truncate 同步完成后清空日志
func (j *Journal) Truncate() error {
	j.m.Lock()
	defer j.m.Unlock()

	err := os.Truncate(j.path, 0)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to truncate journal: %w", err)
	}
	return nil
}
