package intent

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Candidate 是补全服务产出的松散记录，未经校验，不可信。
// 它仅在归一化过程中存活，最终被 Order 或 Ambiguity 取代。
type Candidate map[string]any

// Flatten 将嵌套在 data/intent 子对象中的字段合并到顶层。
// 外层优先：嵌套值只用于填充顶层缺失的键。
func (c Candidate) Flatten() Candidate {
	flat := make(Candidate, len(c))
	for key, value := range c {
		flat[key] = value
	}
	for _, wrapper := range []string{"data", "intent"} {
		nested, ok := flat[wrapper].(map[string]any)
		if !ok {
			continue
		}
		for key, value := range nested {
			if _, exists := flat[key]; !exists {
				flat[key] = value
			}
		}
		delete(flat, wrapper)
	}
	return flat
}

// String 以字符串形式读取字段，数值会被转成十进制表示。
func (c Candidate) String(key string) string {
	switch value := c[key].(type) {
	case string:
		return strings.TrimSpace(value)
	case json.Number:
		return value.String()
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64)
	default:
		return ""
	}
}

// Uint 以无符号整数形式读取字段，兼容字符串与 JSON 数值两种编码。
func (c Candidate) Uint(key string) (uint64, bool) {
	switch value := c[key].(type) {
	case json.Number:
		parsed, err := strconv.ParseUint(value.String(), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	case float64:
		if value < 0 {
			return 0, false
		}
		return uint64(value), true
	case string:
		parsed, err := strconv.ParseUint(strings.TrimSpace(value), 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	default:
		return 0, false
	}
}
