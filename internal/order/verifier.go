package order

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"

	xerrors "Intent-Solver/internal/errors"
)

// Verifier 校验订单签名确实出自声明的签名者。
// 仅支持外部账户的 ECDSA 签名；合约账户（EIP-1271）由外部签名代理负责。
type Verifier struct{}

// NewVerifier 创建签名校验器。
func NewVerifier() *Verifier {
	return &Verifier{}
}

// Verify 重算类型化数据摘要并恢复签名者地址。
// 返回 false 或错误都表示该次签名不可用，调用方不得进入成功状态。
func (v *Verifier) Verify(signable *SignableOrder, signature []byte, claimedSigner string) (bool, error) {
	if signable == nil {
		return false, xerrors.New(xerrors.CodeInvalidArgument, "待校验订单为空")
	}
	if !common.IsHexAddress(claimedSigner) {
		return false, xerrors.New(xerrors.CodeInvalidArgument, "签名者地址不是合法的十六进制地址")
	}
	if len(signature) != 65 {
		return false, xerrors.New(xerrors.CodeVerificationFailure, fmt.Sprintf("签名长度非法: %d", len(signature)))
	}

	digest, _, err := apitypes.TypedDataAndHash(signable.TypedData())
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeVerificationFailure, err, "计算类型化数据摘要失败")
	}

	// 钱包产出的 v 为 27/28，恢复前归一化到 0/1。
	sig := make([]byte, 65)
	copy(sig, signature)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	if sig[64] > 1 {
		return false, xerrors.New(xerrors.CodeVerificationFailure, fmt.Sprintf("非法的恢复标志: %d", sig[64]))
	}

	pubKey, err := crypto.SigToPub(digest, sig)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeVerificationFailure, err, "恢复签名公钥失败")
	}

	recovered := crypto.PubkeyToAddress(*pubKey)
	return recovered == common.HexToAddress(claimedSigner), nil
}

// VerifyHex 是 Verify 的便捷封装，接受 0x 前缀的十六进制签名。
func (v *Verifier) VerifyHex(signable *SignableOrder, signatureHex, claimedSigner string) (bool, error) {
	signature, err := hexutil.Decode(signatureHex)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeVerificationFailure, err, "签名不是合法的十六进制串")
	}
	return v.Verify(signable, signature, claimedSigner)
}
