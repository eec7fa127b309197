/*
 * Copyright 2024 CloudWeGo Authors
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package unsafex

import (
	"encoding/binary"
	"unsafe"
)

// WordSize is the size of a machine word in bytes.
const WordSize = int(unsafe.Sizeof(uintptr(0)))

// Bytes returns a []byte view of n bytes starting at p without copy.
// It returns nil if n is 0.
func Bytes(p unsafe.Pointer, n int) []byte {
	if n == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(p), n)
}

// Copy copies n bytes from src to dst. The two regions must not overlap.
func Copy(dst, src unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	copy(Bytes(dst, n), Bytes(src, n))
}

// Zero clears n bytes starting at p.
func Zero(p unsafe.Pointer, n int) {
	if n == 0 {
		return
	}
	clear(Bytes(p, n))
}

// LoadWord reads a machine word stored at p.
// p doesn't need to be aligned.
func LoadWord(p unsafe.Pointer) uintptr {
	b := Bytes(p, WordSize)
	if WordSize == 8 {
		return uintptr(binary.NativeEndian.Uint64(b))
	}
	return uintptr(binary.NativeEndian.Uint32(b))
}

// StoreWord writes v as a machine word at p.
// p doesn't need to be aligned.
func StoreWord(p unsafe.Pointer, v uintptr) {
	b := Bytes(p, WordSize)
	if WordSize == 8 {
		binary.NativeEndian.PutUint64(b, uint64(v))
		return
	}
	binary.NativeEndian.PutUint32(b, uint32(v))
}
