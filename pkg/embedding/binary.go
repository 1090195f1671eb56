package embedding

// PackBits 将稠密向量按符号阈值化为比特向量：分量 >= 0 记 1，否则记 0。
// 每 8 维打包为一个字节，高位在前，末尾不足 8 维的部分补 0。
func PackBits(dense []float32) []byte {
	packed := make([]byte, (len(dense)+7)/8)
	for i, v := range dense {
		if v >= 0 {
			packed[i/8] |= 1 << (7 - uint(i%8))
		}
	}
	return packed
}
