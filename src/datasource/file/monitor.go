// monitor.go
package file

import (
	"context"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultQuiet 最后一次写入后等待的静默时间，避免文件写到一半就触发分析
const DefaultQuiet = 2 * time.Second

type FileMonitor struct {
	watchDir string
	watcher  *fsnotify.Watcher
	names    map[string]bool // 关注的文件名，空表示目录下全部文件
	quiet    time.Duration
}

func NewFileMonitor(dir string, names ...string) (*FileMonitor, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	m := &FileMonitor{
		watchDir: dir,
		watcher:  watcher,
		names:    make(map[string]bool, len(names)),
		quiet:    DefaultQuiet,
	}
	for _, n := range names {
		m.names[filepath.Base(n)] = true
	}
	return m, nil
}

// SetQuiet 修改静默时间
func (m *FileMonitor) SetQuiet(d time.Duration) { m.quiet = d }

func (m *FileMonitor) Close() error { return m.watcher.Close() }

func (m *FileMonitor) relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return false
	}
	if len(m.names) == 0 {
		return true
	}
	return m.names[filepath.Base(event.Name)]
}

// Watch 阻塞监听，同一批变更只回调一次；handler 在当前goroutine中顺序执行
func (m *FileMonitor) Watch(ctx context.Context, handler func(changed []string)) error {
	timer := time.NewTimer(m.quiet)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := make(map[string]bool)
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !m.relevant(event) {
				continue
			}
			pending[event.Name] = true
			timer.Reset(m.quiet)
		case <-timer.C:
			changed := make([]string, 0, len(pending))
			for name := range pending {
				changed = append(changed, name)
			}
			pending = make(map[string]bool)
			if len(changed) > 0 {
				handler(changed)
			}
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}
