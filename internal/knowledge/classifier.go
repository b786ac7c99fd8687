package knowledge

import "strings"

// TokenClass 是汇率选择所需的粗粒度资产分类。
type TokenClass string

const (
	ClassNative TokenClass = "native"
	ClassStable TokenClass = "stable"
	ClassOther  TokenClass = "other"
)

// stableSymbols 覆盖白名单中锚定美元的代币符号。
var stableSymbols = map[string]bool{
	"USDC": true,
	"USDT": true,
	"DAI":  true,
}

// nativeSymbols 覆盖原生资产及其包装形式。
var nativeSymbols = map[string]bool{
	"ETH":  true,
	"WETH": true,
}

// Classify 将地址归入 {native, stable, other} 三类。
// 不在白名单内的地址一律归为 other，按 1:1 定价处理。
func (b *Base) Classify(chainID uint64, address string) TokenClass {
	if strings.EqualFold(address, NativeToken) {
		return ClassNative
	}
	symbol, ok := b.Symbol(chainID, address)
	if !ok {
		return ClassOther
	}
	switch {
	case nativeSymbols[symbol]:
		return ClassNative
	case stableSymbols[symbol]:
		return ClassStable
	default:
		return ClassOther
	}
}
