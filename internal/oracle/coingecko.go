package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"net/http"
	"strings"
	"time"

	"Intent-Solver/pkg/logger"
)

const defaultEndpoint = "https://api.coingecko.com/api/v3/simple/price?ids=ethereum&vs_currencies=usd"

// CoinGeckoConfig 描述行情接口的调用参数。
type CoinGeckoConfig struct {
	URL      string
	Fallback *big.Rat
	Timeout  time.Duration
}

// CoinGecko 通过 HTTP 拉取 ETH/USD 现货价格。
// 任何失败都在本地降级为兜底常量，不向上层传播错误。
type CoinGecko struct {
	url        string
	fallback   *big.Rat
	httpClient *http.Client
	log        *slog.Logger
}

// NewCoinGecko 创建行情适配器。
func NewCoinGecko(cfg CoinGeckoConfig) *CoinGecko {
	url := strings.TrimSpace(cfg.URL)
	if url == "" {
		url = defaultEndpoint
	}
	fallback := cfg.Fallback
	if fallback == nil || fallback.Sign() <= 0 {
		fallback = DefaultFallbackPrice()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CoinGecko{
		url:      url,
		fallback: fallback,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		log: logger.Named("oracle"),
	}
}

// Price 返回最新的 ETH/USD 价格，失败时返回兜底常量。
func (c *CoinGecko) Price(ctx context.Context) (*big.Rat, error) {
	price, err := c.fetch(ctx)
	if err != nil {
		c.log.Warn("获取价格失败，使用兜底常量",
			slog.Any("error", err),
			slog.String("fallback", c.fallback.FloatString(2)),
		)
		return new(big.Rat).Set(c.fallback), nil
	}
	return price, nil
}

func (c *CoinGecko) fetch(ctx context.Context) (*big.Rat, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("构建行情请求失败: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("请求行情接口失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("行情接口返回状态 %d", resp.StatusCode)
	}

	var decoded struct {
		Ethereum struct {
			USD float64 `json:"usd"`
		} `json:"ethereum"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("解析行情响应失败: %w", err)
	}
	if decoded.Ethereum.USD <= 0 {
		return nil, fmt.Errorf("行情接口返回非法价格 %f", decoded.Ethereum.USD)
	}

	price := new(big.Rat)
	if _, ok := price.SetString(fmt.Sprintf("%f", decoded.Ethereum.USD)); !ok {
		return nil, fmt.Errorf("无法表示价格 %f", decoded.Ethereum.USD)
	}
	return price, nil
}

var _ Oracle = (*CoinGecko)(nil)
