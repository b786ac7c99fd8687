package knowledge

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// NativeToken 是白名单中代表链原生资产的哨兵地址。
const NativeToken = "0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE"

// ZeroAddress 表示"尚未选定"的输出代币（仅投资类意图使用）。
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Base 是意图解析所依赖的静态世界状态：代币白名单、链别名表与精度表。
// 构造后不再变化，由上层组件以只读方式注入。
type Base struct {
	whitelist map[uint64]map[string]string
	aliases   map[string]uint64
	decimals  map[string]int
}

// snapshot 描述白名单 JSON 文件的结构。
type snapshot struct {
	Whitelist map[string]map[string]string `json:"whitelist"`
	Aliases   map[string]uint64            `json:"aliases"`
	Decimals  map[string]int               `json:"decimals"`
}

// Default 返回内置的白名单知识库。
func Default() *Base {
	return &Base{
		whitelist: map[uint64]map[string]string{
			1: {
				"ETH":  NativeToken,
				"USDC": "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
			},
			10: {
				"ETH":  NativeToken,
				"USDT": "0x94b008aa00579c1307b0ef2c499ad98a8ce98706",
			},
			8453: {
				"ETH":  NativeToken,
				"USDC": "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
			},
			42161: {
				"ETH":  NativeToken,
				"USDC": "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
			},
		},
		aliases: map[string]uint64{
			"ethereum": 1,
			"mainnet":  1,
			"optimism": 10,
			"op":       10,
			"arbitrum": 42161,
			"arb":      42161,
			"base":     8453,
		},
		decimals: map[string]int{
			"ETH":  18,
			"USDC": 6,
			"USDT": 6,
		},
	}
}

// Load 从 JSON 文件加载白名单知识库。文件中缺失的部分沿用内置默认值。
func Load(path string) (*Base, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("白名单文件路径不能为空")
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("读取白名单文件失败: %w", err)
	}

	var snap snapshot
	if err := json.Unmarshal(content, &snap); err != nil {
		return nil, fmt.Errorf("解析白名单文件失败: %w", err)
	}

	base := Default()
	if len(snap.Whitelist) > 0 {
		whitelist := make(map[uint64]map[string]string, len(snap.Whitelist))
		for rawID, tokens := range snap.Whitelist {
			chainID, err := strconv.ParseUint(rawID, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("非法的链 ID %q: %w", rawID, err)
			}
			entry := make(map[string]string, len(tokens))
			for symbol, address := range tokens {
				entry[strings.ToUpper(symbol)] = address
			}
			whitelist[chainID] = entry
		}
		base.whitelist = whitelist
	}
	if len(snap.Aliases) > 0 {
		base.aliases = snap.Aliases
	}
	for symbol, dec := range snap.Decimals {
		base.decimals[strings.ToUpper(symbol)] = dec
	}

	// 精度表必须覆盖白名单中的每一个符号，否则编码阶段会使用错误的刻度。
	for chainID, tokens := range base.whitelist {
		for symbol := range tokens {
			if _, ok := base.decimals[symbol]; !ok {
				return nil, fmt.Errorf("符号 %s (链 %d) 缺少精度定义", symbol, chainID)
			}
		}
	}
	return base, nil
}

// ChainID 将链名称或别名解析为链 ID。
func (b *Base) ChainID(alias string) (uint64, bool) {
	id, ok := b.aliases[strings.ToLower(strings.TrimSpace(alias))]
	return id, ok
}

// HasChain 判断链 ID 是否在白名单内。
func (b *Base) HasChain(chainID uint64) bool {
	_, ok := b.whitelist[chainID]
	return ok
}

// TokenAddress 查询某条链上指定符号的代币地址。
func (b *Base) TokenAddress(chainID uint64, symbol string) (string, bool) {
	tokens, ok := b.whitelist[chainID]
	if !ok {
		return "", false
	}
	address, ok := tokens[strings.ToUpper(strings.TrimSpace(symbol))]
	return address, ok
}

// Symbol 反向查询地址对应的符号。
func (b *Base) Symbol(chainID uint64, address string) (string, bool) {
	tokens, ok := b.whitelist[chainID]
	if !ok {
		return "", false
	}
	for symbol, addr := range tokens {
		if strings.EqualFold(addr, address) {
			return symbol, true
		}
	}
	return "", false
}

// Decimals 返回某条链上地址对应资产的精度。未知地址按 18 位处理。
func (b *Base) Decimals(chainID uint64, address string) int {
	symbol, ok := b.Symbol(chainID, address)
	if !ok {
		return 18
	}
	if dec, ok := b.decimals[symbol]; ok {
		return dec
	}
	return 18
}

// WhitelistJSON 以 JSON 形式导出白名单，用于拼装大模型的系统提示词。
func (b *Base) WhitelistJSON() string {
	view := make(map[string]map[string]string, len(b.whitelist))
	for chainID, tokens := range b.whitelist {
		view[strconv.FormatUint(chainID, 10)] = tokens
	}
	encoded, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(encoded)
}

// AliasJSON 以 JSON 形式导出链别名表。
func (b *Base) AliasJSON() string {
	encoded, err := json.MarshalIndent(b.aliases, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(encoded)
}
