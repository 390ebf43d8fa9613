// email_handler.go
package email

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"TaxiAnalysis/src/config"
	"TaxiAnalysis/src/storage"
)

// ====================== 邮件处理器实现 ======================

// AttachmentHandler 保存邮件中的数据附件(.csv/.tsv/.xlsx)
type AttachmentHandler struct {
	DataDir       string            // 附件保存目录
	datasets      map[string]string // 文件名 -> 数据集
	sheets        map[string]string // 数据集 -> 工作表
	logger        *storage.Logger
	processedUIDs map[uint32]bool // 已处理邮件UID记录
	mu            sync.RWMutex    // 保护processedUIDs的读写锁
}

func NewAttachmentHandler(dataDir string, dcfg *config.DataConfig, logger *storage.Logger) *AttachmentHandler {
	datasets := make(map[string]string, len(dcfg.Files))
	for dataset, name := range dcfg.Files {
		datasets[strings.ToLower(name)] = dataset
	}
	return &AttachmentHandler{
		DataDir:       dataDir,
		datasets:      datasets,
		sheets:        dcfg.Sheets,
		logger:        logger,
		processedUIDs: make(map[uint32]bool),
	}
}

// IsProcessed 检查邮件是否已处理过（线程安全）
func (h *AttachmentHandler) IsProcessed(uid uint32) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.processedUIDs[uid]
}

// markAsProcessed 标记邮件为已处理（线程安全）
func (h *AttachmentHandler) markAsProcessed(uid uint32) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.processedUIDs[uid] = true
}

// Handle 校验并保存附件。任一已知数据集附件不合格时整封邮件不落盘。
func (h *AttachmentHandler) Handle(mail *Email) ([]string, error) {
	// 检查是否已处理过该邮件
	if h.IsProcessed(mail.UID) {
		return nil, nil
	}

	type pending struct {
		path    string
		content []byte
	}
	var files []pending
	for _, attachment := range mail.Attachments {
		name := filepath.Base(attachment.Filename)
		if !IsDataFile(name) {
			continue
		}
		dataset, ok := h.datasets[strings.ToLower(name)]
		if !ok {
			h.logger.Warningf("跳过未配置的附件: %s", name)
			continue
		}
		if err := ValidateAttachment(attachment, dataset, h.sheets[dataset]); err != nil {
			return nil, err
		}
		files = append(files, pending{path: filepath.Join(h.DataDir, name), content: attachment.Content})
	}
	if len(files) == 0 {
		h.logger.Infof("邮件 %q 中没有数据附件", mail.Subject)
		return nil, nil
	}

	// 确保保存目录存在
	if err := os.MkdirAll(h.DataDir, 0755); err != nil {
		return nil, fmt.Errorf("创建目录失败: %w", err)
	}

	saved := make([]string, 0, len(files))
	for _, f := range files {
		if err := writeFileAtomic(f.path, f.content); err != nil {
			return saved, fmt.Errorf("保存附件失败: %w", err)
		}
		h.logger.Infof("附件已保存到: %s", f.path)
		saved = append(saved, f.path)
	}

	h.markAsProcessed(mail.UID)
	return saved, nil
}

// IsDataFile 是否为可读取的数据文件
func IsDataFile(name string) bool {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".tsv", ".xlsx":
		return true
	}
	return false
}

// 先写临时文件再改名，目录监控不会读到半个文件
func writeFileAtomic(path string, content []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".attachment-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}
