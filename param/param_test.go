package param

import (
	"bytes"
	"reflect"
	"strings"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestList_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		list List
	}{
		{
			name: "ciphertext",
			list: List{Ciphertext{Width: Width16, Data: []byte{0xde, 0xad, 0xbe, 0xef}}},
		},
		{
			name: "ciphertext array",
			list: List{CiphertextArray{Values: []Ciphertext{
				{Width: Width8, Data: []byte{0x01}},
				{Width: Width8, Data: []byte{0x02, 0x03}},
			}}},
		},
		{
			name: "output ciphertext array",
			list: List{OutputCiphertextArray{Width: Width32, Count: 4}},
		},
		{
			name: "plaintext",
			list: List{Plaintext{Width: Width64, Value: 18446744073709551615}},
		},
		{
			name: "plaintext array",
			list: List{PlaintextArray{Width: Width8, Values: []uint64{0, 127, 255}}},
		},
		{
			name: "empty list",
			list: List{},
		},
		{
			name: "mixed list preserves order",
			list: List{
				Plaintext{Width: Width8, Value: 7},
				Ciphertext{Width: Width16, Data: []byte{0xaa}},
				OutputCiphertextArray{Width: Width16, Count: 1},
				PlaintextArray{Width: Width32, Values: []uint64{1, 2, 3}},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := msgpack.Marshal(tt.list)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var got List
			if err := msgpack.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.list) {
				t.Errorf("round trip = %#v, want %#v", got, tt.list)
			}
		})
	}
}

func TestList_RoundTripEveryWidth(t *testing.T) {
	for _, w := range Widths {
		t.Run(w.String(), func(t *testing.T) {
			list := List{
				Ciphertext{Width: w, Data: []byte{0x42}},
				OutputCiphertextArray{Width: w, Count: 2},
				Plaintext{Width: w, Value: w.MaxUnsigned()},
				PlaintextArray{Width: w, Values: []uint64{0, w.MaxUnsigned()}},
			}
			data, err := msgpack.Marshal(list)
			if err != nil {
				t.Fatalf("Marshal() error: %v", err)
			}
			var got List
			if err := msgpack.Unmarshal(data, &got); err != nil {
				t.Fatalf("Unmarshal() error: %v", err)
			}
			if !reflect.DeepEqual(got, list) {
				t.Errorf("round trip = %#v, want %#v", got, list)
			}
		})
	}
}

// encodeRawParameter builds a payload with one hand-assembled variant body.
func encodeRawParameter(t *testing.T, tag string, body map[string]any) []byte {
	t.Helper()
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(1); err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeMapLen(1); err != nil {
		t.Fatal(err)
	}
	if err := enc.EncodeString(tag); err != nil {
		t.Fatal(err)
	}
	if err := enc.Encode(body); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestList_DecodeErrors(t *testing.T) {
	t.Run("unknown variant", func(t *testing.T) {
		data := encodeRawParameter(t, "Bogus", map[string]any{})
		var got List
		err := msgpack.Unmarshal(data, &got)
		if err == nil {
			t.Fatal("Unmarshal() succeeded, want error")
		}
		if !strings.Contains(err.Error(), `"Bogus"`) {
			t.Errorf("error = %v, want unknown variant name", err)
		}
	})

	t.Run("zero output slot size", func(t *testing.T) {
		data := encodeRawParameter(t, "OutputCiphertextArray", map[string]any{
			"bitWidth": uint8(16),
			"size":     uint32(0),
		})
		var got List
		err := msgpack.Unmarshal(data, &got)
		if err == nil {
			t.Fatal("Unmarshal() succeeded, want error")
		}
		if !strings.Contains(err.Error(), "positive") {
			t.Errorf("error = %v, want positive size message", err)
		}
	})

	t.Run("invalid bit width in payload", func(t *testing.T) {
		data := encodeRawParameter(t, "Plaintext", map[string]any{
			"bitWidth": uint8(24),
			"value":    uint64(1),
		})
		var got List
		err := msgpack.Unmarshal(data, &got)
		if err == nil {
			t.Fatal("Unmarshal() succeeded, want error")
		}
		if !strings.Contains(err.Error(), "invalid bit width: 24") {
			t.Errorf("error = %v, want invalid bit width message", err)
		}
	})

	t.Run("parameter object with extra keys", func(t *testing.T) {
		var buf bytes.Buffer
		enc := msgpack.NewEncoder(&buf)
		if err := enc.EncodeArrayLen(1); err != nil {
			t.Fatal(err)
		}
		if err := enc.EncodeMapLen(2); err != nil {
			t.Fatal(err)
		}
		var got List
		err := msgpack.Unmarshal(buf.Bytes(), &got)
		if err == nil {
			t.Fatal("Unmarshal() succeeded, want error")
		}
		if !strings.Contains(err.Error(), "exactly 1") {
			t.Errorf("error = %v, want single key message", err)
		}
	})

	t.Run("truncated payload", func(t *testing.T) {
		list := List{Plaintext{Width: Width8, Value: 1}}
		data, err := msgpack.Marshal(list)
		if err != nil {
			t.Fatal(err)
		}
		var got List
		if err := msgpack.Unmarshal(data[:len(data)-1], &got); err == nil {
			t.Fatal("Unmarshal() of truncated payload succeeded, want error")
		}
	})
}

func TestOutputs_RoundTrip(t *testing.T) {
	outputs := []Ciphertext{
		{Width: Width16, Data: []byte{0x2a, 0x00}},
		{Width: Width64, Data: []byte{1, 2, 3, 4, 5, 6, 7, 8}},
	}
	data, err := msgpack.Marshal(outputs)
	if err != nil {
		t.Fatalf("Marshal() error: %v", err)
	}
	var got []Ciphertext
	if err := msgpack.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}
	if !reflect.DeepEqual(got, outputs) {
		t.Errorf("round trip = %#v, want %#v", got, outputs)
	}
}
