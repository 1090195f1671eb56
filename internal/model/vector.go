package model

import (
	"encoding/hex"
	"fmt"
)

// 向量编码方式，与 embedding.encoding 配置一致。
const (
	EncodingFloat   = "float"
	EncodingUBinary = "ubinary"
)

// Vector 是文本的向量表示。Dense 与 Binary 二者只有一个非空：
// Binary 为按符号阈值化后的比特向量，每字节 8 维，高位在前。
type Vector struct {
	Dense  []float32 `json:"dense,omitempty"`
	Binary []byte    `json:"binary,omitempty"`
}

// IsZero 报告向量是否为空。
func (v Vector) IsZero() bool {
	return len(v.Dense) == 0 && len(v.Binary) == 0
}

// Encoding 返回向量实际使用的编码。
func (v Vector) Encoding() string {
	if len(v.Binary) > 0 {
		return EncodingUBinary
	}
	return EncodingFloat
}

// Dimensions 返回向量维度；比特向量每字节计 8 维。
func (v Vector) Dimensions() int {
	if len(v.Binary) > 0 {
		return len(v.Binary) * 8
	}
	return len(v.Dense)
}

// IndexValue 返回写入 Elasticsearch 的字段值：稠密向量为浮点数组，比特向量为十六进制字符串。
func (v Vector) IndexValue() interface{} {
	if len(v.Binary) > 0 {
		return hex.EncodeToString(v.Binary)
	}
	return v.Dense
}

// VectorFromIndexValue 将 Elasticsearch _source 中的 vector 字段还原为 Vector。
func VectorFromIndexValue(raw interface{}) (Vector, error) {
	switch val := raw.(type) {
	case string:
		b, err := hex.DecodeString(val)
		if err != nil {
			return Vector{}, fmt.Errorf("decode bit vector: %w", err)
		}
		return Vector{Binary: b}, nil
	case []interface{}:
		dense := make([]float32, 0, len(val))
		for i, x := range val {
			f, ok := x.(float64)
			if !ok {
				return Vector{}, fmt.Errorf("vector element %d has type %T", i, x)
			}
			dense = append(dense, float32(f))
		}
		return Vector{Dense: dense}, nil
	case nil:
		return Vector{}, nil
	default:
		return Vector{}, fmt.Errorf("unsupported vector type %T", raw)
	}
}
