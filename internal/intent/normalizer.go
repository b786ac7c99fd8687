package intent

import (
	"context"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/knowledge"
	"Intent-Solver/internal/oracle"
	"Intent-Solver/internal/web3"
	"Intent-Solver/pkg/logger"
)

// feeMultiplier 是固定的 1% 滑点折扣。
var feeMultiplier = big.NewRat(99, 100)

// Normalizer 是核心决策引擎：校验并修复候选记录、填充默认值、
// 计算最小输出金额、解析收款人，最终产出规范订单或歧义信号。
type Normalizer struct {
	kb       *knowledge.Base
	oracle   oracle.Oracle
	resolver web3.NameResolver
	log      *slog.Logger
}

// NewNormalizer 创建归一化器。resolver 可以为 nil，此时域名解析按失败处理。
func NewNormalizer(kb *knowledge.Base, priceOracle oracle.Oracle, resolver web3.NameResolver) *Normalizer {
	return &Normalizer{
		kb:       kb,
		oracle:   priceOracle,
		resolver: resolver,
		log:      logger.Named("normalizer"),
	}
}

// Normalize 把不可信的候选记录转换为规范订单。
// 每一步只填充空缺字段，绝不覆盖模型显式给出的值（除文档注明的收款人规则外）。
func (n *Normalizer) Normalize(ctx context.Context, candidate Candidate, userAddress string, userChainID uint64) (*Order, *Ambiguity, error) {
	if candidate == nil {
		return nil, nil, xerrors.New(xerrors.CodeInvalidArgument, "候选记录为空")
	}
	cand := candidate.Flatten()

	// 歧义门：模型显式放弃消歧时立即终止，后续步骤一律不执行。
	if cand.String("status") == StatusAmbiguous {
		message := cand.String("message")
		if message == "" {
			message = "the request could not be resolved to a unique order"
		}
		return nil, &Ambiguity{Status: StatusAmbiguous, Message: message}, nil
	}

	intentType := canonicalType(cand.String("intentType"))

	// 链默认值。方向本身完全信任模型，归一化器从不推断或交换输入输出。
	sourceChainID, ok := cand.Uint("sourceChainId")
	if !ok || sourceChainID == 0 {
		sourceChainID = userChainID
	}
	if sourceChainID == 0 {
		sourceChainID = DefaultChainID
	}
	destinationChainID, _ := cand.Uint("destinationChainId")

	inputToken := cand.String("inputTokenAddress")
	outputToken := cand.String("outputTokenAddress")
	recipient := cand.String("recipient")
	protocol := cand.String("protocol")

	// 投资类意图的整形。
	if intentType == TypeInvest {
		if protocol == "" {
			protocol = DefaultProtocol
		}
		if destinationChainID == 0 {
			destinationChainID = sourceChainID
		}
		if outputToken == "" {
			outputToken = knowledge.ZeroAddress
		}
		// 投资目标是合约，永远不会是用户自己。
		if recipient == "" || strings.EqualFold(recipient, userAddress) {
			recipient = InvestPoolAddress
		}
	}

	recipient = n.resolveRecipient(ctx, recipient, userAddress)
	if recipient == "" || recipient == "undefined" {
		recipient = userAddress
	}

	inputAmount := cand.String("inputAmount")
	if inputAmount == "" {
		inputAmount = "0"
	}

	var minOutputAmount string
	if intentType == TypeInvest {
		// 投资类意图不做汇率折算，沿用模型给出的值或补零。
		minOutputAmount = cand.String("minOutputAmount")
		if minOutputAmount == "" {
			minOutputAmount = "0"
		}
	} else {
		minOutputAmount = n.computeMinOutput(ctx, inputAmount, sourceChainID, inputToken, destinationChainID, outputToken)
	}

	order := &Order{
		IntentType:         intentType,
		SourceChainID:      sourceChainID,
		DestinationChainID: destinationChainID,
		InputToken:         inputToken,
		InputAmount:        inputAmount,
		OutputToken:        outputToken,
		MinOutputAmount:    minOutputAmount,
		Recipient:          recipient,
		Protocol:           protocol,
		APY:                cand.String("apy"),
	}
	if err := order.checkComplete(); err != nil {
		return nil, nil, err
	}
	return order, nil, nil
}

// resolveRecipient 把 ENS 域名替换为链上地址。
// 解析失败且原值不是地址形态时回退到用户地址，签名字段中绝不保留可解析失败的域名；
// 解析成功但记录为空时保持原值，由下游拒绝签名。
func (n *Normalizer) resolveRecipient(ctx context.Context, recipient, userAddress string) string {
	if !strings.HasSuffix(strings.ToLower(recipient), ".eth") {
		return recipient
	}

	if n.resolver == nil {
		n.log.Warn("未配置域名解析器", slog.String("recipient", recipient))
		if !common.IsHexAddress(recipient) {
			return userAddress
		}
		return recipient
	}

	resolved, err := n.resolver.Resolve(ctx, recipient)
	if err != nil {
		n.log.Warn("域名解析失败，回退到用户地址",
			slog.String("recipient", recipient),
			slog.Any("error", err),
		)
		if !common.IsHexAddress(recipient) {
			return userAddress
		}
		return recipient
	}
	if resolved == "" {
		return recipient
	}
	return resolved
}

// computeMinOutput 按资产分类选择汇率并应用固定折扣。
// 价格源失败按适配器失败处理：记录日志并使用兜底常量，不向调用方传播。
func (n *Normalizer) computeMinOutput(ctx context.Context, inputAmount string, sourceChainID uint64, inputToken string, destinationChainID uint64, outputToken string) string {
	amount, ok := new(big.Rat).SetString(inputAmount)
	if !ok || amount.Sign() < 0 {
		// 零金额或无法解析的金额不报错，输出同样为零。
		amount = new(big.Rat)
	}

	inputClass := n.kb.Classify(sourceChainID, inputToken)
	outputClass := n.kb.Classify(destinationChainID, outputToken)

	rate := big.NewRat(1, 1)
	if inputClass != outputClass {
		price := n.spotPrice(ctx)
		switch {
		case inputClass == knowledge.ClassStable && outputClass == knowledge.ClassNative:
			rate = new(big.Rat).Inv(price)
		case inputClass == knowledge.ClassNative && outputClass == knowledge.ClassStable:
			rate = price
		}
	}

	min := new(big.Rat).Mul(amount, rate)
	min.Mul(min, feeMultiplier)
	return min.FloatString(6)
}

func (n *Normalizer) spotPrice(ctx context.Context) *big.Rat {
	if n.oracle == nil {
		return oracle.DefaultFallbackPrice()
	}
	price, err := n.oracle.Price(ctx)
	if err != nil || price == nil || price.Sign() <= 0 {
		n.log.Warn("价格源不可用，使用兜底常量", slog.Any("error", err))
		return oracle.DefaultFallbackPrice()
	}
	return price
}

// canonicalType 把模型输出的意图类型归一化为 swap/invest 两种形态。
func canonicalType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case TypeInvest, "deposit", "stake":
		return TypeInvest
	default:
		return TypeSwap
	}
}

// checkComplete 是归一化的终检：任何必填字段仍为空即为失败。
func (o *Order) checkComplete() error {
	missing := ""
	switch {
	case o.SourceChainID == 0:
		missing = "sourceChainId"
	case o.DestinationChainID == 0:
		missing = "destinationChainId"
	case o.InputToken == "":
		missing = "inputTokenAddress"
	case o.OutputToken == "":
		missing = "outputTokenAddress"
	case o.InputAmount == "":
		missing = "inputAmount"
	case o.MinOutputAmount == "":
		missing = "minOutputAmount"
	case o.Recipient == "":
		missing = "recipient"
	}
	if missing != "" {
		return xerrors.New(CodeIncompleteOrder, "", xerrors.WithMetadata("field", missing))
	}
	return nil
}
