package intent

import xerrors "Intent-Solver/internal/errors"

// 本包专属的细分错误码，启动时注册到统一错误码表。
const (
	CodeEmptyCompletion     xerrors.Code = "PARSE_EMPTY_RESPONSE"
	CodeMalformedCompletion xerrors.Code = "PARSE_MALFORMED_JSON"
	CodeIncompleteOrder     xerrors.Code = "NORMALIZE_INCOMPLETE_ORDER"
)

func init() {
	xerrors.Register(CodeEmptyCompletion, xerrors.Attributes{
		Message:  "completion service returned no content",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeMalformedCompletion, xerrors.Attributes{
		Message:  "completion output is not valid JSON",
		Severity: xerrors.SeverityWarning,
	})
	xerrors.Register(CodeIncompleteOrder, xerrors.Attributes{
		Message:  "order is missing required fields after normalization",
		Severity: xerrors.SeverityWarning,
	})
}
