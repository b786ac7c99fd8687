package mysql

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// 订单记录的生命周期状态。
const (
	StatusQueued     = "queued"
	StatusDispatched = "dispatched"
)

// OrderRecord 表示一笔已验签订单的落库结构。
type OrderRecord struct {
	ID                 string `json:"id"`
	IntentType         string `json:"intent_type"`
	SourceChainID      uint64 `json:"source_chain_id"`
	DestinationChainID uint64 `json:"destination_chain_id"`
	InputToken         string `json:"input_token"`
	InputAmount        string `json:"input_amount"`
	OutputToken        string `json:"output_token"`
	MinOutputAmount    string `json:"min_output_amount"`
	Recipient          string `json:"recipient"`
	User               string `json:"user"`
	Signature          string `json:"signature"`
	Status             string `json:"status"`
	CreatedAt          int64  `json:"created_at"`
	UpdatedAt          int64  `json:"updated_at"`
}

// OrderRepository 抽象订单数据的持久化接口。
type OrderRepository interface {
	Create(ctx context.Context, record *OrderRecord) error
	ListLatest(ctx context.Context, limit int) ([]OrderRecord, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// ErrOrderNotFound 表示订单不存在。
var ErrOrderNotFound = errors.New("订单不存在")

// ErrUnsupportedDriver 在遇到未知存储驱动时使用。
var ErrUnsupportedDriver = errors.New("暂不支持的存储驱动")

// MemoryOrderRepository 使用本地 JSON 行文件模拟 MySQL 的效果，方便迭代开发。
type MemoryOrderRepository struct {
	mu       sync.RWMutex
	dataFile string
	records  []OrderRecord
}

// NewMemoryOrderRepository 创建一个内存订单仓库。
func NewMemoryOrderRepository(dataDir string) (*MemoryOrderRepository, error) {
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("创建数据目录失败: %w", err)
	}
	path := filepath.Join(dataDir, "orders.log")
	repo := &MemoryOrderRepository{dataFile: path}
	if err := repo.loadFromDisk(); err != nil {
		return nil, err
	}
	return repo, nil
}

// Create 以追加写的方式记录订单。
func (m *MemoryOrderRepository) Create(_ context.Context, record *OrderRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	file, err := os.OpenFile(m.dataFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("打开订单日志失败: %w", err)
	}
	defer file.Close()

	encoded, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("序列化订单记录失败: %w", err)
	}
	if _, err := file.Write(append(encoded, '\n')); err != nil {
		return fmt.Errorf("写入订单日志失败: %w", err)
	}

	m.records = append([]OrderRecord{*record}, m.records...)
	if len(m.records) > 512 {
		m.records = m.records[:512]
	}
	return nil
}

// ListLatest 返回最近的订单记录，按时间倒序排列。
func (m *MemoryOrderRepository) ListLatest(_ context.Context, limit int) ([]OrderRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	results := make([]OrderRecord, limit)
	copy(results, m.records[:limit])
	return results, nil
}

// UpdateStatus 更新内存中的订单状态。文件中保留原始记录作为追加日志。
func (m *MemoryOrderRepository) UpdateStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := range m.records {
		if m.records[i].ID == id {
			m.records[i].Status = status
			return nil
		}
	}
	return ErrOrderNotFound
}

func (m *MemoryOrderRepository) loadFromDisk() error {
	file, err := os.OpenFile(m.dataFile, os.O_RDONLY|os.O_CREATE, 0o644)
	if err != nil {
		return fmt.Errorf("读取订单日志失败: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	var restored []OrderRecord
	for scanner.Scan() {
		var record OrderRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue
		}
		restored = append([]OrderRecord{record}, restored...)
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("解析订单日志失败: %w", err)
	}
	m.records = restored
	return nil
}

var _ OrderRepository = (*MemoryOrderRepository)(nil)
