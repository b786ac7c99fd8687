package intent

import (
	"context"
	"errors"
	"strings"
	"testing"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/knowledge"
	"Intent-Solver/internal/llm"
)

type stubLLM struct {
	resp    *llm.Response
	err     error
	lastReq llm.Request
}

func (s *stubLLM) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return s.resp, nil
}

func TestParseSuccess(t *testing.T) {
	client := &stubLLM{resp: &llm.Response{Content: `{"intentType":"swap","sourceChainId":1,"inputAmount":"1.5"}`}}
	parser := NewParser(knowledge.Default(), client)

	candidate, err := parser.Parse(context.Background(), "swap 1.5 ETH to USDC on base",
		"0x1111111111111111111111111111111111111111", 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if candidate.String("intentType") != "swap" {
		t.Fatalf("unexpected intent type: %q", candidate.String("intentType"))
	}
	if id, ok := candidate.Uint("sourceChainId"); !ok || id != 1 {
		t.Fatalf("unexpected source chain: %d %v", id, ok)
	}

	// 系统提示词必须携带白名单与调用方上下文。
	if !strings.Contains(client.lastReq.System, knowledge.NativeToken) {
		t.Fatalf("expected whitelist in system prompt")
	}
	if !strings.Contains(client.lastReq.System, "0x1111111111111111111111111111111111111111") {
		t.Fatalf("expected user address in system prompt")
	}
}

func TestParseEmptyPrompt(t *testing.T) {
	parser := NewParser(knowledge.Default(), &stubLLM{resp: &llm.Response{Content: "{}"}})

	_, err := parser.Parse(context.Background(), "   ", "", 0)
	if err == nil {
		t.Fatalf("expected error for blank prompt")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestParseEmptyCompletion(t *testing.T) {
	parser := NewParser(knowledge.Default(), &stubLLM{resp: &llm.Response{Content: "  "}})

	_, err := parser.Parse(context.Background(), "swap", "", 0)
	if err == nil {
		t.Fatalf("expected error for empty completion")
	}
	if xerrors.CodeOf(err) != CodeEmptyCompletion {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestParseMalformedCompletion(t *testing.T) {
	parser := NewParser(knowledge.Default(), &stubLLM{resp: &llm.Response{Content: "not json at all"}})

	_, err := parser.Parse(context.Background(), "swap", "", 0)
	if err == nil {
		t.Fatalf("expected error for malformed completion")
	}
	if xerrors.CodeOf(err) != CodeMalformedCompletion {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestParseClientFailure(t *testing.T) {
	parser := NewParser(knowledge.Default(), &stubLLM{err: errors.New("boom")})

	_, err := parser.Parse(context.Background(), "swap", "", 0)
	if err == nil {
		t.Fatalf("expected error when completion client fails")
	}
	if xerrors.CodeOf(err) != xerrors.CodeParseFailure {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}
