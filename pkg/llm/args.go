package llm

import (
	"bytes"
	"encoding/json"
)

// DecodeArguments 将工具参数（JSON 对象或 JSON 字符串形式的对象）转换为 map
// 无法解析或不是对象时返回空 map
func DecodeArguments(raw json.RawMessage) map[string]any {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]any{}
	}

	// 字符串形式：先取出字符串再按 JSON 解析
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return map[string]any{}
		}
		return decodeObject([]byte(s))
	}
	return decodeObject(raw)
}

func decodeObject(data []byte) map[string]any {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil || out == nil {
		return map[string]any{}
	}
	return out
}

// EncodeArguments 将参数编码为 JSON 字符串，用于 OpenAI 的 arguments 字段和日志
func EncodeArguments(args map[string]any) string {
	if args == nil {
		return "{}"
	}
	data, err := json.Marshal(args)
	if err != nil {
		return "{}"
	}
	return string(data)
}
