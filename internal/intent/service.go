package intent

import (
	"context"
	"log/slog"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/pkg/logger"
)

// Service 串联解析与归一化，是意图流水线对外的唯一入口。
type Service struct {
	parser     *Parser
	normalizer *Normalizer
	log        *slog.Logger
}

// NewService 构造意图服务。
func NewService(parser *Parser, normalizer *Normalizer) *Service {
	return &Service{
		parser:     parser,
		normalizer: normalizer,
		log:        logger.Named("intent"),
	}
}

// Resolve 把自由文本转换为规范订单或歧义信号。
// 每次调用独立持有自己的候选记录，彼此之间没有共享可变状态。
func (s *Service) Resolve(ctx context.Context, prompt, userAddress string, userChainID uint64) (*Result, error) {
	if s.parser == nil || s.normalizer == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "意图服务未初始化")
	}

	candidate, err := s.parser.Parse(ctx, prompt, userAddress, userChainID)
	if err != nil {
		return nil, err
	}

	order, ambiguity, err := s.normalizer.Normalize(ctx, candidate, userAddress, userChainID)
	if err != nil {
		return nil, err
	}
	if ambiguity != nil {
		s.log.Info("意图无法消歧",
			slog.String("message", ambiguity.Message),
			slog.String("user", userAddress),
		)
		return &Result{Ambiguity: ambiguity}, nil
	}

	s.log.Info("意图解析完成",
		slog.String("intent_type", order.IntentType),
		slog.Uint64("source_chain", order.SourceChainID),
		slog.Uint64("destination_chain", order.DestinationChainID),
		slog.String("input_amount", order.InputAmount),
		slog.String("min_output", order.MinOutputAmount),
	)
	return &Result{Order: order}, nil
}
