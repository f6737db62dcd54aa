// Copyright (C) ClusterCockpit Authors.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.

package marshal

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// countWordSize is the on-wire width of a count prefix: a native-width
// unsigned word, per spec §6 ("All integer counts are transmitted as
// native-width unsigned word (size_t)").
const countWordSize = 8

func encodeCount(n int) []byte {
	buf := make([]byte, countWordSize)
	binary.NativeEndian.PutUint64(buf, uint64(n))
	return buf
}

func decodeCount(data []byte) int {
	return int(binary.NativeEndian.Uint64(data))
}

// encodeFixed serializes a fixed-size value (POD scalar, struct of fixed
// fields, or a slice of such) in native endianness.
func encodeFixed(v any) []byte {
	buf := new(bytes.Buffer)
	if err := binary.Write(buf, binary.NativeEndian, v); err != nil {
		panic(fmt.Sprintf("marshal: %T is not a fixed-size type: %v", v, err))
	}
	return buf.Bytes()
}

// decodeFixed deserializes into a pointer to a fixed-size value or slice.
func decodeFixed(data []byte, out any) {
	if err := binary.Read(bytes.NewReader(data), binary.NativeEndian, out); err != nil {
		panic(fmt.Sprintf("marshal: cannot decode into %T: %v", out, err))
	}
}

func sizeOf(v any) int {
	n := binary.Size(v)
	if n < 0 {
		panic(fmt.Sprintf("marshal: %T is not a fixed-size type", v))
	}
	return n
}
