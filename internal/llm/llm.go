package llm

import "context"

// Request 描述一次补全调用：系统提示词承载白名单与解析规则，Prompt 为用户原文。
type Request struct {
	System string
	Prompt string
}

// Response 是补全服务返回的原始文本，预期为单个 JSON 对象。
type Response struct {
	Content string
}

// Client 定义了调用大模型补全服务的统一接口。
type Client interface {
	Complete(ctx context.Context, req Request) (*Response, error)
}
