// Package repository 提供只读数据访问层
package repository

import (
	"context"

	"github.com/paiban/rostercheck/internal/database"
)

// DB 查询接口
type DB = database.Querier

// ReadOnlyRunner 提供只读事务
type ReadOnlyRunner interface {
	ReadOnly(ctx context.Context, fn func(q DB) error) error
}

// Scanner 行扫描接口
type Scanner interface {
	Scan(dest ...interface{}) error
}
