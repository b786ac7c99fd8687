package order

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	gethmath "github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"

	xerrors "Intent-Solver/internal/errors"
	"Intent-Solver/internal/intent"
	"Intent-Solver/internal/knowledge"
)

const (
	testUser      = "0x1111111111111111111111111111111111111111"
	testRecipient = "0x2222222222222222222222222222222222222222"
	testBaseUSDC  = "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913"
)

func hexMustDecode(t *testing.T, value string) []byte {
	t.Helper()
	decoded, err := hexutil.Decode(value)
	if err != nil {
		t.Fatalf("decode hex: %v", err)
	}
	return decoded
}

func fixedEncoder() *Encoder {
	e := NewEncoder(knowledge.Default())
	e.now = func() time.Time { return time.Unix(1700000000, 0) }
	e.nonce = func() (*big.Int, error) { return big.NewInt(12345), nil }
	return e
}

func sampleOrder() *intent.Order {
	return &intent.Order{
		IntentType:         intent.TypeSwap,
		SourceChainID:      1,
		DestinationChainID: 8453,
		InputToken:         knowledge.NativeToken,
		InputAmount:        "1.5",
		OutputToken:        testBaseUSDC,
		MinOutputAmount:    "4455.123456",
		Recipient:          testRecipient,
	}
}

func messageInt(t *testing.T, signable *SignableOrder, key string) *big.Int {
	t.Helper()
	value, ok := signable.Message[key].(*gethmath.HexOrDecimal256)
	if !ok {
		t.Fatalf("unexpected type for %s: %T", key, signable.Message[key])
	}
	return (*big.Int)(value)
}

func TestEncodeTypedData(t *testing.T) {
	signable, err := fixedEncoder().Encode(sampleOrder(), testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if signable.PrimaryType != PrimaryType {
		t.Fatalf("unexpected primary type: %s", signable.PrimaryType)
	}
	if signable.Domain.Name != DomainName || signable.Domain.Version != DomainVersion {
		t.Fatalf("unexpected domain: %+v", signable.Domain)
	}
	if (*big.Int)(signable.Domain.ChainId).Uint64() != 1 {
		t.Fatalf("expected domain bound to source chain, got %v", signable.Domain.ChainId)
	}
	if signable.Domain.VerifyingContract != OriginSettler {
		t.Fatalf("unexpected verifying contract: %s", signable.Domain.VerifyingContract)
	}

	if signable.Message["originSettler"] != OriginSettler {
		t.Fatalf("unexpected origin settler: %v", signable.Message["originSettler"])
	}
	if messageInt(t, signable, "nonce").Int64() != 12345 {
		t.Fatalf("unexpected nonce: %v", signable.Message["nonce"])
	}
	if messageInt(t, signable, "originChainId").Uint64() != 1 {
		t.Fatalf("unexpected origin chain: %v", signable.Message["originChainId"])
	}
	if messageInt(t, signable, "openDeadline").Int64() != 1700000000 {
		t.Fatalf("unexpected open deadline: %v", signable.Message["openDeadline"])
	}
	if messageInt(t, signable, "fillDeadline").Int64() != 1700003600 {
		t.Fatalf("unexpected fill deadline: %v", signable.Message["fillDeadline"])
	}

	wantType := crypto.Keccak256Hash([]byte("CrossChainTransfer")).Hex()
	if signable.Message["orderDataType"] != wantType {
		t.Fatalf("unexpected order data type: %v", signable.Message["orderDataType"])
	}

	orderData, ok := signable.Message["orderData"].(string)
	if !ok {
		t.Fatalf("unexpected order data type: %T", signable.Message["orderData"])
	}
	// 6 个 32 字节的 ABI 字段。
	if len(orderData) != 2+6*64 {
		t.Fatalf("unexpected order data length: %d", len(orderData))
	}
}

func TestEncodeScalesAmountsByDecimals(t *testing.T) {
	signable, err := fixedEncoder().Encode(sampleOrder(), testUser)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	orderData := signable.Message["orderData"].(string)
	values, err := orderDataArgs.Unpack(hexMustDecode(t, orderData))
	if err != nil {
		t.Fatalf("unpack order data: %v", err)
	}

	inputAmount := values[1].(*big.Int)
	if inputAmount.String() != "1500000000000000000" {
		t.Fatalf("unexpected scaled input amount: %s", inputAmount)
	}
	minOutput := values[3].(*big.Int)
	if minOutput.String() != "4455123456" {
		t.Fatalf("unexpected scaled min output: %s", minOutput)
	}
	destination := values[4].(*big.Int)
	if destination.Uint64() != 8453 {
		t.Fatalf("unexpected destination chain: %s", destination)
	}
}

func TestEncodeRejectsUnresolvedRecipient(t *testing.T) {
	ord := sampleOrder()
	ord.Recipient = "vitalik.eth"

	_, err := fixedEncoder().Encode(ord, testUser)
	if err == nil {
		t.Fatalf("expected error for handle-shaped recipient")
	}
	if xerrors.CodeOf(err) != xerrors.CodeInvalidArgument {
		t.Fatalf("unexpected error code: %s", xerrors.CodeOf(err))
	}
}

func TestEncodeRejectsNegativeAmount(t *testing.T) {
	ord := sampleOrder()
	ord.InputAmount = "-1"

	if _, err := fixedEncoder().Encode(ord, testUser); err == nil {
		t.Fatalf("expected error for negative amount")
	}
}

func TestScaleAmount(t *testing.T) {
	cases := []struct {
		value    string
		decimals int
		want     string
	}{
		{"1.5", 18, "1500000000000000000"},
		{"100", 6, "100000000"},
		{"1.23456789", 6, "1234567"},
		{"0.000001", 6, "1"},
		{"", 6, "0"},
		{".5", 6, "500000"},
	}
	for _, tc := range cases {
		got, err := scaleAmount(tc.value, tc.decimals)
		if err != nil {
			t.Fatalf("scaleAmount(%q, %d): %v", tc.value, tc.decimals, err)
		}
		if got.String() != tc.want {
			t.Fatalf("scaleAmount(%q, %d) = %s, want %s", tc.value, tc.decimals, got, tc.want)
		}
	}

	if _, err := scaleAmount("-0.1", 6); err == nil {
		t.Fatalf("expected error for negative value")
	}
	if _, err := scaleAmount("1,5", 6); err == nil {
		t.Fatalf("expected error for malformed value")
	}
}
