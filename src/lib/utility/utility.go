package utility

import "encoding/binary"

func Concat[T any](arrays ...[]T) []T {
	n := 0
	for _, ele := range arrays {
		n += len(ele)
	}
	result := make([]T, 0, n)
	for _, ele := range arrays {
		result = append(result, ele...)
	}
	return result
}

func UintToBytes(u uint64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, u)
	return buf[:n]
}

func IntToBytes(i int64) []byte {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutVarint(buf, i)
	return buf[:n]
}
