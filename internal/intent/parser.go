package intent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/knowledge"
	"Intent-Solver/internal/llm"
)

// Parser 负责把自由文本意图约束在白名单内，并交给补全服务做结构化抽取。
type Parser struct {
	kb     *knowledge.Base
	client llm.Client
}

// NewParser 创建意图解析器。
func NewParser(kb *knowledge.Base, client llm.Client) *Parser {
	return &Parser{kb: kb, client: client}
}

// Parse 构建接地提示词、调用补全服务并解码为候选记录。
// 字段语义的校验不在这里发生，那是归一化器的职责。
func (p *Parser) Parse(ctx context.Context, prompt, userAddress string, userChainID uint64) (Candidate, error) {
	if p.client == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "未配置补全客户端")
	}
	if strings.TrimSpace(prompt) == "" {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "意图文本不能为空")
	}

	resp, err := p.client.Complete(ctx, llm.Request{
		System: p.systemPrompt(userAddress, userChainID),
		Prompt: prompt,
	})
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeParseFailure, err, "补全服务调用失败")
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return nil, xerrors.New(CodeEmptyCompletion, "")
	}

	decoder := json.NewDecoder(bytes.NewReader([]byte(resp.Content)))
	decoder.UseNumber()

	var candidate Candidate
	if err := decoder.Decode(&candidate); err != nil {
		return nil, xerrors.Wrap(CodeMalformedCompletion, err, "",
			xerrors.WithMetadata("content_length", fmt.Sprintf("%d", len(resp.Content))))
	}
	return candidate, nil
}

// systemPrompt 把白名单、链别名表与调用方上下文嵌入固定指令集。
func (p *Parser) systemPrompt(userAddress string, userChainID uint64) string {
	if strings.TrimSpace(userAddress) == "" {
		userAddress = knowledge.ZeroAddress
	}
	if userChainID == 0 {
		userChainID = DefaultChainID
	}

	var b strings.Builder
	b.WriteString("You are a professional Cross-Chain DeFi Intent Parser.\n")
	b.WriteString("Your task is to convert user natural language into a strict JSON object.\n\n")
	fmt.Fprintf(&b, "Context:\n- User Current Address: %s\n- User Current Chain ID: %d\n\n", userAddress, userChainID)
	b.WriteString("Knowledge Base (Token Whitelist):\n")
	b.WriteString(p.kb.WhitelistJSON())
	b.WriteString("\n\nChain ID Map:\n")
	b.WriteString(p.kb.AliasJSON())
	b.WriteString("\n\nRules:\n")
	b.WriteString("1. Identify intentType (\"swap\" or \"invest\"), sourceChainId, destinationChainId, inputTokenAddress, inputAmount, outputTokenAddress, recipient.\n")
	b.WriteString("2. IF source chain is not specified, use User Current Chain ID.\n")
	b.WriteString("3. IF destination chain is not specified, infer from context (e.g., \"bridge to Base\").\n")
	b.WriteString("4. inputAmount must be a STRING (e.g., \"100.5\"). Do NOT convert units (keep the decimal representation).\n")
	b.WriteString("5. recipient defaults to User Current Address unless specified otherwise; keep ENS names (e.g. \"vitalik.eth\") as-is.\n")
	b.WriteString("6. For deposit/stake/invest requests set intentType to \"invest\" and put the strategy name in \"protocol\".\n")
	b.WriteString("7. IF the request cannot be resolved to a unique order (missing token, amount or destination), return {\"status\": \"ambiguous\", \"message\": \"<what is missing>\"} instead.\n")
	b.WriteString("8. Return JSON ONLY. No markdown formatting.\n\n")
	b.WriteString("Required JSON Schema:\n")
	b.WriteString(`{
  "intentType": "swap",
  "sourceChainId": number,
  "destinationChainId": number,
  "inputTokenAddress": "0x...",
  "inputAmount": "string",
  "outputTokenAddress": "0x...",
  "recipient": "0x..."
}`)
	return b.String()
}
