package cache

import "encoding/json"

// Serializer 值序列化接口
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
}

// JSONSerializer JSON 序列化实现
type JSONSerializer struct{}

// Marshal 序列化为 JSON
func (JSONSerializer) Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// Unmarshal 从 JSON 反序列化
func (JSONSerializer) Unmarshal(data []byte, v any) error {
	return json.Unmarshal(data, v)
}
