package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/order"
	"Intent-Solver/internal/solver"
	"Intent-Solver/pkg/logger"
)

// Server 负责暴露 REST 接口，供前端驱动意图流水线。
type Server struct {
	addr      string
	authToken string
	intents   *intent.Service
	encoder   *order.Encoder
	orders    *solver.Service
	log       *slog.Logger
}

// NewServer 构造 API 服务实例。
func NewServer(addr, authToken string, intents *intent.Service, encoder *order.Encoder, orders *solver.Service) *Server {
	return &Server{
		addr:      addr,
		authToken: authToken,
		intents:   intents,
		encoder:   encoder,
		orders:    orders,
		log:       logger.Named("api"),
	}
}

// Start 启动 HTTP 服务，直到上下文取消或出现错误。
func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/api/v1/intents", s.withAuth(s.handleIntents))
	mux.HandleFunc("/api/v1/orders/encode", s.withAuth(s.handleEncode))
	mux.HandleFunc("/api/v1/orders", s.withAuth(s.handleOrders))

	server := &http.Server{
		Addr:              s.addr,
		Handler:           withContext(ctx, mux),
		ReadHeaderTimeout: 5 * time.Second,
	}

	// 启动服务器并监听关闭信号。
	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.log.Info("API 服务已启动", slog.String("address", s.addr))

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errCh:
		return err
	}
}

type intentRequest struct {
	Prompt         string `json:"prompt"`
	UserAddress    string `json:"userAddress"`
	CurrentChainID uint64 `json:"currentChainId"`
}

// handleIntents 把自由文本意图转换为规范订单或歧义信号。
func (s *Server) handleIntents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.intents == nil {
		http.Error(w, "意图服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}

	result, err := s.intents.Resolve(r.Context(), req.Prompt, req.UserAddress, req.CurrentChainID)
	if err != nil {
		// 内部失败细节只进日志，对外保持统一的错误消息。
		s.log.Error("意图解析失败",
			slog.Any("error", err),
			slog.String("code", string(xerrors.CodeOf(err))),
			slog.String("user", req.UserAddress),
		)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to parse intent"})
		return
	}

	if result.Ambiguity != nil {
		writeJSON(w, http.StatusOK, result.Ambiguity)
		return
	}
	writeJSON(w, http.StatusOK, result.Order)
}

type encodeRequest struct {
	Order       *intent.Order `json:"order"`
	UserAddress string        `json:"userAddress"`
}

// handleEncode 把已确认的订单编码为 ERC-7683 类型化数据。
func (s *Server) handleEncode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "仅支持 POST", http.StatusMethodNotAllowed)
		return
	}
	if s.encoder == nil {
		http.Error(w, "编码服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req encodeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}

	signable, err := s.encoder.Encode(req.Order, req.UserAddress)
	if err != nil {
		if xerrors.CodeOf(err) == xerrors.CodeInvalidArgument {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		s.log.Error("订单编码失败", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to encode order"})
		return
	}
	writeJSON(w, http.StatusOK, signable)
}

type submitRequest struct {
	Order       *intent.Order        `json:"order"`
	Signable    *order.SignableOrder `json:"signable"`
	Signature   string               `json:"signature"`
	UserAddress string               `json:"userAddress"`
}

func (s *Server) handleOrders(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		s.handleSubmitOrder(w, r)
	case http.MethodGet:
		s.handleListOrders(w, r)
	default:
		http.Error(w, "仅支持 GET/POST", http.StatusMethodNotAllowed)
	}
}

// handleSubmitOrder 验签通过后把订单落库并投递给求解器。
func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		http.Error(w, "订单服务未初始化", http.StatusServiceUnavailable)
		return
	}

	var req submitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "请求体解析失败"})
		return
	}

	record, err := s.orders.Submit(r.Context(), req.Order, req.Signable, req.Signature, req.UserAddress)
	if err != nil {
		switch xerrors.CodeOf(err) {
		case xerrors.CodeInvalidArgument:
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		case xerrors.CodeVerificationFailure:
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "signature verification failed"})
		default:
			s.log.Error("订单提交失败", slog.Any("error", err))
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to submit order"})
		}
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	if s.orders == nil {
		http.Error(w, "订单服务未初始化", http.StatusServiceUnavailable)
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	records, err := s.orders.List(r.Context(), limit)
	if err != nil {
		s.log.Error("订单查询失败", slog.Any("error", err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list orders"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// withAuth 在配置了访问令牌时校验 Bearer 头。
func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	if s.authToken == "" {
		return next
	}
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.authToken)) != 1 {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// withContext 确保请求处理能够感知根上下文取消。
func withContext(ctx context.Context, handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ctx.Done():
			http.Error(w, "服务已关闭", http.StatusServiceUnavailable)
			return
		default:
		}
		handler.ServeHTTP(w, r)
	})
}
