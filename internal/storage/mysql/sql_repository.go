package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

// Config 描述 MySQL 连接池参数。
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// SQLOrderRepository 使用真实的 MySQL 数据库存储订单信息。
type SQLOrderRepository struct {
	db *sql.DB
}

// NewSQLOrderRepository 创建连接池并初始化数据表。
func NewSQLOrderRepository(ctx context.Context, cfg Config) (*SQLOrderRepository, error) {
	if strings.TrimSpace(cfg.DSN) == "" {
		return nil, fmt.Errorf("MySQL DSN 不能为空")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("连接 MySQL 失败: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	} else {
		db.SetMaxOpenConns(20)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	} else {
		db.SetMaxIdleConns(10)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	} else {
		db.SetConnMaxLifetime(30 * time.Minute)
	}
	if cfg.ConnMaxIdleTime > 0 {
		db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("无法连接到 MySQL: %w", err)
	}

	repo := &SQLOrderRepository{db: db}
	if err := repo.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

func (s *SQLOrderRepository) initSchema(ctx context.Context) error {
	const schema = `CREATE TABLE IF NOT EXISTS orders (
        id VARCHAR(36) NOT NULL PRIMARY KEY,
        intent_type VARCHAR(16) NOT NULL,
        source_chain_id BIGINT UNSIGNED NOT NULL,
        destination_chain_id BIGINT UNSIGNED NOT NULL,
        input_token VARCHAR(42) NOT NULL,
        input_amount VARCHAR(78) NOT NULL,
        output_token VARCHAR(42) NOT NULL,
        min_output_amount VARCHAR(78) NOT NULL,
        recipient VARCHAR(42) NOT NULL,
        user_address VARCHAR(42) NOT NULL,
        signature VARCHAR(132) NOT NULL,
        status VARCHAR(16) NOT NULL,
        created_at BIGINT NOT NULL,
        updated_at BIGINT NOT NULL,
        INDEX idx_created_at (created_at)
)`

	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("初始化 orders 表失败: %w", err)
	}
	return nil
}

// Create 将订单记录写入 MySQL。
func (s *SQLOrderRepository) Create(ctx context.Context, record *OrderRecord) error {
	const stmt = `INSERT INTO orders
        (id, intent_type, source_chain_id, destination_chain_id, input_token, input_amount,
         output_token, min_output_amount, recipient, user_address, signature, status, created_at, updated_at)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	if _, err := s.db.ExecContext(ctx, stmt,
		record.ID,
		record.IntentType,
		record.SourceChainID,
		record.DestinationChainID,
		record.InputToken,
		record.InputAmount,
		record.OutputToken,
		record.MinOutputAmount,
		record.Recipient,
		record.User,
		record.Signature,
		record.Status,
		record.CreatedAt,
		record.UpdatedAt,
	); err != nil {
		return fmt.Errorf("写入 MySQL 失败: %w", err)
	}
	return nil
}

// ListLatest 查询最近的若干条订单记录。
func (s *SQLOrderRepository) ListLatest(ctx context.Context, limit int) ([]OrderRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `SELECT id, intent_type, source_chain_id, destination_chain_id,
        input_token, input_amount, output_token, min_output_amount, recipient, user_address, signature, status,
        created_at, updated_at
        FROM orders ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("查询订单记录失败: %w", err)
	}
	defer rows.Close()

	var records []OrderRecord
	for rows.Next() {
		var record OrderRecord
		if err := rows.Scan(
			&record.ID,
			&record.IntentType,
			&record.SourceChainID,
			&record.DestinationChainID,
			&record.InputToken,
			&record.InputAmount,
			&record.OutputToken,
			&record.MinOutputAmount,
			&record.Recipient,
			&record.User,
			&record.Signature,
			&record.Status,
			&record.CreatedAt,
			&record.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("解析订单记录失败: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("遍历订单记录失败: %w", err)
	}
	return records, nil
}

// UpdateStatus 更新订单状态。
func (s *SQLOrderRepository) UpdateStatus(ctx context.Context, id, status string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ?, updated_at = ? WHERE id = ?`,
		status, time.Now().Unix(), id)
	if err != nil {
		return fmt.Errorf("更新订单状态失败: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("读取更新结果失败: %w", err)
	}
	if affected == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// Close 关闭底层数据库连接。
func (s *SQLOrderRepository) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

var _ OrderRepository = (*SQLOrderRepository)(nil)
