package ens

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gethcore "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
)

// defaultRegistry 是主网 ENS 注册表的标准部署地址。
const defaultRegistry = "0x00000000000C2E074eC69A0dFb2997BA6C7d2e1e"

const registryABI = `[{"name":"resolver","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}]`
const resolverABI = `[{"name":"addr","type":"function","stateMutability":"view","inputs":[{"name":"node","type":"bytes32"}],"outputs":[{"name":"","type":"address"}]}]`

// Config 描述 ENS 解析所需的节点信息。
type Config struct {
	RPCURL          string
	RegistryAddress string
	Timeout         time.Duration
}

// Resolver 通过 eth_call 查询 ENS 注册表与解析器合约。
type Resolver struct {
	eth         *ethclient.Client
	registry    common.Address
	registryAbi abi.ABI
	resolverAbi abi.ABI
	timeout     time.Duration
}

// NewResolver 连接以太坊节点并返回 ENS 解析器。
func NewResolver(ctx context.Context, cfg Config) (*Resolver, error) {
	rpcURL := strings.TrimSpace(cfg.RPCURL)
	if rpcURL == "" {
		return nil, errors.New("未配置以太坊 RPC 地址")
	}

	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("连接以太坊节点失败: %w", err)
	}

	registry := strings.TrimSpace(cfg.RegistryAddress)
	if registry == "" {
		registry = defaultRegistry
	}
	if !common.IsHexAddress(registry) {
		eth.Close()
		return nil, fmt.Errorf("非法的注册表地址: %s", registry)
	}

	registryParsed, err := abi.JSON(strings.NewReader(registryABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("解析注册表 ABI 失败: %w", err)
	}
	resolverParsed, err := abi.JSON(strings.NewReader(resolverABI))
	if err != nil {
		eth.Close()
		return nil, fmt.Errorf("解析解析器 ABI 失败: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Resolver{
		eth:         eth,
		registry:    common.HexToAddress(registry),
		registryAbi: registryParsed,
		resolverAbi: resolverParsed,
		timeout:     timeout,
	}, nil
}

// Close 释放节点连接。
func (r *Resolver) Close() {
	if r != nil && r.eth != nil {
		r.eth.Close()
	}
}

// Resolve 将域名解析为地址。输入已是地址形态时原样返回。
// 域名存在但没有地址记录时返回空字符串。
func (r *Resolver) Resolve(ctx context.Context, name string) (string, error) {
	name = strings.TrimSpace(name)
	if common.IsHexAddress(name) {
		return name, nil
	}
	if name == "" {
		return "", errors.New("域名不能为空")
	}

	callCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	node := Namehash(name)

	resolverAddr, err := r.callAddress(callCtx, r.registryAbi, r.registry, "resolver", node)
	if err != nil {
		return "", fmt.Errorf("查询 ENS 解析器失败: %w", err)
	}
	if resolverAddr == (common.Address{}) {
		return "", nil
	}

	resolved, err := r.callAddress(callCtx, r.resolverAbi, resolverAddr, "addr", node)
	if err != nil {
		return "", fmt.Errorf("查询 ENS 地址记录失败: %w", err)
	}
	if resolved == (common.Address{}) {
		return "", nil
	}
	return resolved.Hex(), nil
}

func (r *Resolver) callAddress(ctx context.Context, parsed abi.ABI, to common.Address, method string, node common.Hash) (common.Address, error) {
	data, err := parsed.Pack(method, node)
	if err != nil {
		return common.Address{}, err
	}
	raw, err := r.eth.CallContract(ctx, gethcore.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return common.Address{}, err
	}
	outputs, err := parsed.Unpack(method, raw)
	if err != nil {
		return common.Address{}, err
	}
	if len(outputs) != 1 {
		return common.Address{}, fmt.Errorf("方法 %s 返回了 %d 个值", method, len(outputs))
	}
	address, ok := outputs[0].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("方法 %s 返回了非地址类型", method)
	}
	return address, nil
}

// Namehash 计算 EIP-137 规定的域名哈希。
func Namehash(name string) common.Hash {
	node := make([]byte, 32)
	if name == "" {
		return common.BytesToHash(node)
	}
	labels := strings.Split(strings.ToLower(name), ".")
	for i := len(labels) - 1; i >= 0; i-- {
		labelHash := crypto.Keccak256([]byte(labels[i]))
		node = crypto.Keccak256(node, labelHash)
	}
	return common.BytesToHash(node)
}
