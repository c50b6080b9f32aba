package runner

import (
	spfrunner "github.com/Sunscreen-tech/spf-runner"
	"github.com/Sunscreen-tech/spf-runner/errors"
	"github.com/Sunscreen-tech/spf-runner/param"
)

// collect reads every declared output buffer back from engine memory and
// packs each element into wire form. Results preserve declaration order and,
// within a buffer, element order.
func collect(eng spfrunner.Engine, mem spfrunner.Memory, buffers []outputBuffer) ([]param.Ciphertext, error) {
	var total uint32
	for _, buf := range buffers {
		total += buf.count
	}

	outs := make([]param.Ciphertext, 0, total)
	for bi, buf := range buffers {
		for i := uint32(0); i < buf.count; i++ {
			off := i * buf.width.ByteWidth()
			h, err := mem.Offset(buf.handle, off)
			if err != nil {
				return nil, errors.OffsetFailed(uint32(buf.handle), off, err)
			}
			w, err := mem.ReadWord(h, buf.width)
			if err != nil {
				return nil, errors.MemoryAccessFailed("read word", uint32(h), err)
			}
			ct, err := eng.Pack(w)
			if err != nil {
				return nil, errors.PackFailed(bi, int(i), err)
			}
			outs = append(outs, ct)
		}
	}
	return outs, nil
}
