package web3

import "context"

// NameResolver 将人类可读域名（如 vitalik.eth）解析为链上地址。
// 返回空字符串且无错误表示域名存在但未配置地址记录。
type NameResolver interface {
	Resolve(ctx context.Context, name string) (string, error)
}
