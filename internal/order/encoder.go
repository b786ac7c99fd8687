package order

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/knowledge"
)

const (
	// OriginSettler 是演示用的结算合约地址，ERC-7683 域与消息都绑定到它。
	OriginSettler = "0x0000000000000000000000000000000000007683"
	// DomainName 与 DomainVersion 标识订单所属的协议域。
	DomainName    = "Across"
	DomainVersion = "1"
	// PrimaryType 是 ERC-7683 无 Gas 跨链订单的类型名。
	PrimaryType = "GaslessCrossChainOrder"
	// orderDataTypeLiteral 经 keccak256 后用作订单子类型判别哈希。
	orderDataTypeLiteral = "CrossChainTransfer"
	// fillWindow 是订单从生效到过期的时间窗口。
	fillWindow = time.Hour
)

// signTypes 描述 GaslessCrossChainOrder 的 EIP-712 类型表。
var signTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "originSettler", Type: "address"},
		{Name: "user", Type: "address"},
		{Name: "nonce", Type: "uint256"},
		{Name: "originChainId", Type: "uint256"},
		{Name: "openDeadline", Type: "uint32"},
		{Name: "fillDeadline", Type: "uint32"},
		{Name: "orderDataType", Type: "bytes32"},
		{Name: "orderData", Type: "bytes"},
	},
}

// SignableOrder 是交给钱包签名的完整类型化数据三元组。
// 每个确认后的订单只生成一次，签名完成或用户放弃后即丢弃。
type SignableOrder struct {
	Domain      apitypes.TypedDataDomain  `json:"domain"`
	Types       apitypes.Types            `json:"types"`
	PrimaryType string                    `json:"primaryType"`
	Message     apitypes.TypedDataMessage `json:"message"`
}

// TypedData 组装 go-ethereum 的类型化数据结构。
func (s *SignableOrder) TypedData() apitypes.TypedData {
	return apitypes.TypedData{
		Types:       s.Types,
		PrimaryType: s.PrimaryType,
		Domain:      s.Domain,
		Message:     s.Message,
	}
}

// Encoder 把规范订单编码为可签名结构。
// 除时间戳与随机 nonce 外完全确定。
type Encoder struct {
	kb    *knowledge.Base
	now   func() time.Time
	nonce func() (*big.Int, error)
}

// NewEncoder 创建订单编码器。
func NewEncoder(kb *knowledge.Base) *Encoder {
	return &Encoder{
		kb:    kb,
		now:   time.Now,
		nonce: randomNonce,
	}
}

// randomNonce 产生 96 位随机 nonce，避免时间戳在快速重复签名下的碰撞。
func randomNonce() (*big.Int, error) {
	buf := make([]byte, 12)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("生成随机 nonce 失败: %w", err)
	}
	return new(big.Int).SetBytes(buf), nil
}

// Encode 把订单编码为 ERC-7683 类型化数据。
// 金额按白名单登记的精度换算为整数，域绑定到订单的源链。
func (e *Encoder) Encode(ord *intent.Order, userAddress string) (*SignableOrder, error) {
	if ord == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "订单为空")
	}
	if !common.IsHexAddress(userAddress) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "用户地址不是合法的十六进制地址")
	}
	// 域名形态的收款人说明解析未完成，这样的订单不允许进入签名。
	if !common.IsHexAddress(ord.Recipient) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "收款人不是合法的十六进制地址",
			xerrors.WithMetadata("recipient", ord.Recipient))
	}
	if !common.IsHexAddress(ord.InputToken) || !common.IsHexAddress(ord.OutputToken) {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "代币地址不是合法的十六进制地址")
	}

	inputScaled, err := scaleAmount(ord.InputAmount, e.kb.Decimals(ord.SourceChainID, ord.InputToken))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "输入金额换算失败")
	}
	outputScaled, err := scaleAmount(ord.MinOutputAmount, e.kb.Decimals(ord.DestinationChainID, ord.OutputToken))
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeInvalidArgument, err, "最小输出金额换算失败")
	}

	orderData, err := packOrderData(
		common.HexToAddress(ord.InputToken),
		inputScaled,
		common.HexToAddress(ord.OutputToken),
		outputScaled,
		new(big.Int).SetUint64(ord.DestinationChainID),
		common.HexToAddress(ord.Recipient),
	)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNormalizeFailure, err, "订单数据编码失败")
	}

	nonce, err := e.nonce()
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeNormalizeFailure, err, "")
	}

	now := e.now().Unix()
	message := apitypes.TypedDataMessage{
		"originSettler": OriginSettler,
		"user":          common.HexToAddress(userAddress).Hex(),
		"nonce":         (*gethmath.HexOrDecimal256)(nonce),
		"originChainId": (*gethmath.HexOrDecimal256)(new(big.Int).SetUint64(ord.SourceChainID)),
		"openDeadline":  (*gethmath.HexOrDecimal256)(big.NewInt(now)),
		"fillDeadline":  (*gethmath.HexOrDecimal256)(big.NewInt(now + int64(fillWindow/time.Second))),
		"orderDataType": crypto.Keccak256Hash([]byte(orderDataTypeLiteral)).Hex(),
		"orderData":     hexutil.Encode(orderData),
	}

	return &SignableOrder{
		Domain: apitypes.TypedDataDomain{
			Name:              DomainName,
			Version:           DomainVersion,
			ChainId:           gethmath.NewHexOrDecimal256(int64(ord.SourceChainID)),
			VerifyingContract: OriginSettler,
		},
		Types:       signTypes,
		PrimaryType: PrimaryType,
		Message:     message,
	}, nil
}

// orderDataArgs 是 (inputToken, inputAmount, outputToken, minOutputAmount,
// destinationChainId, recipient) 的固定 ABI 布局。
var orderDataArgs = mustArguments()

func mustArguments() abi.Arguments {
	addressType, err := abi.NewType("address", "", nil)
	if err != nil {
		panic(err)
	}
	uint256Type, err := abi.NewType("uint256", "", nil)
	if err != nil {
		panic(err)
	}
	return abi.Arguments{
		{Type: addressType},
		{Type: uint256Type},
		{Type: addressType},
		{Type: uint256Type},
		{Type: uint256Type},
		{Type: addressType},
	}
}

func packOrderData(inputToken common.Address, inputAmount *big.Int, outputToken common.Address, minOutput *big.Int, destinationChainID *big.Int, recipient common.Address) ([]byte, error) {
	return orderDataArgs.Pack(inputToken, inputAmount, outputToken, minOutput, destinationChainID, recipient)
}

// scaleAmount 把十进制字符串按指定精度换算为整数。
// 超出精度的小数位被截断，负数金额视为非法。
func scaleAmount(value string, decimals int) (*big.Int, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		value = "0"
	}
	if strings.HasPrefix(value, "-") {
		return nil, fmt.Errorf("金额不能为负数: %s", value)
	}

	parts := strings.SplitN(value, ".", 2)
	intPart := parts[0]
	if intPart == "" {
		intPart = "0"
	}
	frac := ""
	if len(parts) == 2 {
		frac = parts[1]
	}
	if len(frac) > decimals {
		frac = frac[:decimals]
	}
	frac += strings.Repeat("0", decimals-len(frac))

	combined := intPart + frac
	result, ok := new(big.Int).SetString(combined, 10)
	if !ok {
		return nil, fmt.Errorf("无法解析金额: %s", value)
	}
	return result, nil
}
