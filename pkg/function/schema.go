package function

import (
	"encoding/json"
	"reflect"

	"github.com/invopop/jsonschema"
)

// reflector 参数结构体到 JSON Schema 的反射器
// 内联展开、不使用 $ref，便于各家 API 直接接受
var reflector = &jsonschema.Reflector{
	DoNotReference:            true,
	ExpandedStruct:            true,
	AllowAdditionalProperties: true,
}

// ParamsSchema 生成工具参数的 JSON Schema
// 没有参数时返回空对象 schema
func ParamsSchema(fn Function) map[string]any {
	t := fn.ParamsType()
	if t == nil {
		return emptyObjectSchema()
	}
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return emptyObjectSchema()
	}

	data, err := json.Marshal(reflector.ReflectFromType(t))
	if err != nil {
		return emptyObjectSchema()
	}
	var schema map[string]any
	if err := json.Unmarshal(data, &schema); err != nil {
		return emptyObjectSchema()
	}
	delete(schema, "$schema")
	delete(schema, "$id")
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

func emptyObjectSchema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}
