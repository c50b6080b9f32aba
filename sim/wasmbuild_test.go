package sim

// Minimal wasm binary construction for test kernels. Only what the test
// images need: flat straight-line bodies, one memory, func and memory
// exports, an optional env.gas import.

func uleb(v uint64) []byte {
	var out []byte
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		out = append(out, b)
		if v == 0 {
			return out
		}
	}
}

func cat(chunks ...[]byte) []byte {
	var out []byte
	for _, c := range chunks {
		out = append(out, c...)
	}
	return out
}

func wasmName(s string) []byte {
	return append(uleb(uint64(len(s))), s...)
}

func wasmSection(id byte, contents []byte) []byte {
	return cat([]byte{id}, uleb(uint64(len(contents))), contents)
}

func wasmCode(bodies ...[]byte) []byte {
	entries := uleb(uint64(len(bodies)))
	for _, body := range bodies {
		entry := cat([]byte{0x00}, body) // no locals
		entries = cat(entries, uleb(uint64(len(entry))), entry)
	}
	return wasmSection(10, entries)
}

var wasmHeader = []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}

// addOneImage exports add_one(value i32, out i32): stores value+1 as a
// 16-bit word at out and meters 5 gas through env.gas.
func addOneImage() []byte {
	types := cat(
		uleb(2),
		[]byte{0x60}, uleb(1), []byte{0x7e}, uleb(0), // (i64) -> ()
		[]byte{0x60}, uleb(2), []byte{0x7f, 0x7f}, uleb(0), // (i32, i32) -> ()
	)
	imports := cat(
		uleb(1),
		wasmName("env"), wasmName("gas"), []byte{0x00}, uleb(0),
	)
	funcs := cat(uleb(1), uleb(1))
	mems := cat(uleb(1), []byte{0x00}, uleb(1))
	exports := cat(
		uleb(2),
		wasmName("memory"), []byte{0x02}, uleb(0),
		wasmName("add_one"), []byte{0x00}, uleb(1),
	)
	body := []byte{
		0x42, 0x05, // i64.const 5
		0x10, 0x00, // call $gas
		0x20, 0x01, // local.get $out
		0x20, 0x00, // local.get $value
		0x41, 0x01, // i32.const 1
		0x6a,             // i32.add
		0x3b, 0x01, 0x00, // i32.store16
		0x0b, // end
	}
	return cat(
		wasmHeader,
		wasmSection(1, types),
		wasmSection(2, imports),
		wasmSection(3, funcs),
		wasmSection(5, mems),
		wasmSection(7, exports),
		wasmCode(body),
	)
}

// sumPairImage exports sum_pair(ptr i32, out i32): stores the 16-bit sum of
// the two 16-bit words at ptr into out. Unmetered.
func sumPairImage() []byte {
	types := cat(
		uleb(1),
		[]byte{0x60}, uleb(2), []byte{0x7f, 0x7f}, uleb(0),
	)
	funcs := cat(uleb(1), uleb(0))
	mems := cat(uleb(1), []byte{0x00}, uleb(1))
	exports := cat(
		uleb(2),
		wasmName("memory"), []byte{0x02}, uleb(0),
		wasmName("sum_pair"), []byte{0x00}, uleb(0),
	)
	body := []byte{
		0x20, 0x01, // local.get $out
		0x20, 0x00, // local.get $ptr
		0x2f, 0x01, 0x00, // i32.load16_u offset=0
		0x20, 0x00, // local.get $ptr
		0x2f, 0x01, 0x02, // i32.load16_u offset=2
		0x6a,             // i32.add
		0x3b, 0x01, 0x00, // i32.store16
		0x0b, // end
	}
	return cat(
		wasmHeader,
		wasmSection(1, types),
		wasmSection(3, funcs),
		wasmSection(5, mems),
		wasmSection(7, exports),
		wasmCode(body),
	)
}

// addOne64Image exports add_one64(value i64, out i32): stores value+1 as a
// 64-bit word at out. Unmetered.
func addOne64Image() []byte {
	types := cat(
		uleb(1),
		[]byte{0x60}, uleb(2), []byte{0x7e, 0x7f}, uleb(0), // (i64, i32) -> ()
	)
	funcs := cat(uleb(1), uleb(0))
	mems := cat(uleb(1), []byte{0x00}, uleb(1))
	exports := cat(
		uleb(2),
		wasmName("memory"), []byte{0x02}, uleb(0),
		wasmName("add_one64"), []byte{0x00}, uleb(0),
	)
	body := []byte{
		0x20, 0x01, // local.get $out
		0x20, 0x00, // local.get $value
		0x42, 0x01, // i64.const 1
		0x7c,             // i64.add
		0x37, 0x03, 0x00, // i64.store
		0x0b, // end
	}
	return cat(
		wasmHeader,
		wasmSection(1, types),
		wasmSection(3, funcs),
		wasmSection(5, mems),
		wasmSection(7, exports),
		wasmCode(body),
	)
}
