package solver

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/order"
	"Intent-Solver/internal/storage/mysql"
	"Intent-Solver/pkg/logger"
)

// Service 负责已签名订单的验签、落库与向求解器网络的投递。
type Service struct {
	repo     mysql.OrderRepository
	queue    Queue
	verifier *order.Verifier
	log      *slog.Logger
}

// NewService 构造订单提交服务。
func NewService(repo mysql.OrderRepository, queue Queue, verifier *order.Verifier) *Service {
	return &Service{
		repo:     repo,
		queue:    queue,
		verifier: verifier,
		log:      logger.Named("solver"),
	}
}

// Submit 校验签名后持久化订单并投递到队列。
// 验签不通过时订单既不落库也不投递。
func (s *Service) Submit(ctx context.Context, ord *intent.Order, signable *order.SignableOrder, signatureHex, userAddress string) (*mysql.OrderRecord, error) {
	if s.repo == nil || s.queue == nil || s.verifier == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "订单服务未初始化")
	}
	if ord == nil || signable == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "订单或待签名结构为空")
	}

	ok, err := s.verifier.VerifyHex(signable, signatureHex, userAddress)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, xerrors.New(xerrors.CodeVerificationFailure, "签名与声明的签名者不符")
	}

	now := time.Now().Unix()
	record := &mysql.OrderRecord{
		ID:                 uuid.NewString(),
		IntentType:         ord.IntentType,
		SourceChainID:      ord.SourceChainID,
		DestinationChainID: ord.DestinationChainID,
		InputToken:         ord.InputToken,
		InputAmount:        ord.InputAmount,
		OutputToken:        ord.OutputToken,
		MinOutputAmount:    ord.MinOutputAmount,
		Recipient:          ord.Recipient,
		User:               userAddress,
		Signature:          signatureHex,
		Status:             mysql.StatusQueued,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	if err := s.repo.Create(ctx, record); err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "保存订单记录失败")
	}

	if err := s.queue.Publish(ctx, record.ID); err != nil {
		s.log.Error("订单入队失败", slog.Any("error", err), slog.String("order_id", record.ID))
		return nil, xerrors.Wrap(xerrors.CodeQueueFailure, err, "发布订单到队列失败")
	}

	logger.Audit().Info("订单已验签入队",
		slog.String("order_id", record.ID),
		slog.String("user", record.User),
		slog.String("intent_type", record.IntentType),
		slog.Uint64("source_chain", record.SourceChainID),
		slog.Uint64("destination_chain", record.DestinationChainID),
	)
	return record, nil
}

// List 返回最近的订单记录。
func (s *Service) List(ctx context.Context, limit int) ([]mysql.OrderRecord, error) {
	if s.repo == nil {
		return nil, xerrors.New(xerrors.CodeInitializationFailure, "订单服务未初始化")
	}
	records, err := s.repo.ListLatest(ctx, limit)
	if err != nil {
		return nil, xerrors.Wrap(xerrors.CodeStorageFailure, err, "查询订单记录失败")
	}
	return records, nil
}

// Run 启动消费循环，把排队中的订单标记为已投递。
// 真实的结算执行由外部求解器基础设施完成，不在本服务范围内。
func (s *Service) Run(ctx context.Context, workers int) error {
	if s.queue == nil {
		return xerrors.New(xerrors.CodeInitializationFailure, "订单队列未初始化")
	}
	return s.queue.Consume(ctx, workers, s.dispatch)
}

func (s *Service) dispatch(ctx context.Context, orderID string) error {
	if err := s.repo.UpdateStatus(ctx, orderID, mysql.StatusDispatched); err != nil {
		s.log.Warn("更新订单状态失败", slog.Any("error", err), slog.String("order_id", orderID))
		return err
	}
	s.log.Info("订单已广播至求解器网络", slog.String("order_id", orderID))
	return nil
}
