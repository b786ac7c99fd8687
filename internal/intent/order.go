package intent

// 意图的两种规范形态。模型输出中的 "cross-chain-swap" 会被归一化为 swap。
const (
	TypeSwap   = "swap"
	TypeInvest = "invest"
)

const (
	// DefaultChainID 在调用方既没有连接钱包也没有指定链时兜底使用（Arbitrum One）。
	DefaultChainID uint64 = 42161
	// DefaultProtocol 是投资类意图未指明策略时的默认协议。
	DefaultProtocol = "Aave"
	// InvestPoolAddress 是投资类意图的固定入金合约地址。
	// 投资目标永远是合约而非用户自身。
	InvestPoolAddress = "0x000000000000000000000000000000000000dEf1"
	// StatusAmbiguous 是模型显式声明无法消歧时使用的状态值。
	StatusAmbiguous = "ambiguous"
)

// Order 是完全解析后的规范订单，可直接交给编码器生成待签名结构。
type Order struct {
	IntentType         string `json:"intentType"`
	SourceChainID      uint64 `json:"sourceChainId"`
	DestinationChainID uint64 `json:"destinationChainId"`
	InputToken         string `json:"inputTokenAddress"`
	InputAmount        string `json:"inputAmount"`
	OutputToken        string `json:"outputTokenAddress"`
	MinOutputAmount    string `json:"minOutputAmount"`
	Recipient          string `json:"recipient"`
	Protocol           string `json:"protocol,omitempty"`
	// APY 仅用于展示，不参与签名。
	APY string `json:"apy,omitempty"`
}

// Ambiguity 是流水线的一等终态：请求无法唯一确定一个订单，需要用户补充信息。
type Ambiguity struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

// Result 聚合一次意图解析的两种互斥产出。
type Result struct {
	Order     *Order     `json:"order,omitempty"`
	Ambiguity *Ambiguity `json:"ambiguity,omitempty"`
}
