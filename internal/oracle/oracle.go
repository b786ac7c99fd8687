package oracle

import (
	"context"
	"math/big"
)

// Oracle 提供原生资产对美元的参考汇率（ETH/USD）。
type Oracle interface {
	Price(ctx context.Context) (*big.Rat, error)
}

// DefaultFallbackPrice 是价格源不可用时的兜底常量。
func DefaultFallbackPrice() *big.Rat {
	return big.NewRat(3000, 1)
}

// Static 返回固定价格，用于测试与降级场景。
type Static struct {
	price *big.Rat
}

// NewStatic 创建固定价格的 Oracle。
func NewStatic(price *big.Rat) *Static {
	if price == nil || price.Sign() <= 0 {
		price = DefaultFallbackPrice()
	}
	return &Static{price: price}
}

// Price 返回固定价格。
func (s *Static) Price(context.Context) (*big.Rat, error) {
	return new(big.Rat).Set(s.price), nil
}

var _ Oracle = (*Static)(nil)
