package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/Sunscreen-tech/spf-runner/param"
)

// The workbench composes parameter lists from whitespace-separated entries:
//
//	ct:u16=41      one ciphertext
//	cts:u16=1,2,3  ciphertext array
//	out:u16*4      output ciphertext array of 4 elements
//	pt:u8=7        one plaintext
//	pts:u32=1,2    plaintext array
//
// Ciphertext values are encrypted on the spot with the session key.

type encryptFunc func(param.BitWidth, uint64) (param.Ciphertext, error)

func parseParams(spec string, encrypt encryptFunc) (param.List, error) {
	var list param.List
	for _, tok := range strings.Fields(spec) {
		p, err := parseEntry(tok, encrypt)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", tok, err)
		}
		list = append(list, p)
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("no parameters given")
	}
	return list, nil
}

func parseEntry(tok string, encrypt encryptFunc) (param.Parameter, error) {
	kind, rest, ok := strings.Cut(tok, ":")
	if !ok {
		return nil, fmt.Errorf("want kind:width=values or out:width*count")
	}

	if kind == "out" {
		widthStr, countStr, ok := strings.Cut(rest, "*")
		if !ok {
			return nil, fmt.Errorf("want out:width*count")
		}
		width, err := parseWidth(widthStr)
		if err != nil {
			return nil, err
		}
		count, err := strconv.ParseUint(countStr, 10, 32)
		if err != nil || count == 0 {
			return nil, fmt.Errorf("invalid output count %q", countStr)
		}
		return param.OutputCiphertextArray{Width: width, Count: uint32(count)}, nil
	}

	widthStr, valueStr, ok := strings.Cut(rest, "=")
	if !ok {
		return nil, fmt.Errorf("want %s:width=values", kind)
	}
	width, err := parseWidth(widthStr)
	if err != nil {
		return nil, err
	}
	values, err := parseValues(valueStr)
	if err != nil {
		return nil, err
	}

	switch kind {
	case "ct":
		if len(values) != 1 {
			return nil, fmt.Errorf("ct takes exactly one value")
		}
		ct, err := encrypt(width, values[0])
		if err != nil {
			return nil, err
		}
		return ct, nil

	case "cts":
		cts := make([]param.Ciphertext, len(values))
		for i, v := range values {
			ct, err := encrypt(width, v)
			if err != nil {
				return nil, err
			}
			cts[i] = ct
		}
		return param.CiphertextArray{Values: cts}, nil

	case "pt":
		if len(values) != 1 {
			return nil, fmt.Errorf("pt takes exactly one value")
		}
		return param.Plaintext{Width: width, Value: values[0]}, nil

	case "pts":
		return param.PlaintextArray{Width: width, Values: values}, nil
	}
	return nil, fmt.Errorf("unknown parameter kind %q", kind)
}

func parseWidth(s string) (param.BitWidth, error) {
	rest, ok := strings.CutPrefix(s, "u")
	if !ok {
		return 0, fmt.Errorf("invalid bit width %q", s)
	}
	bits, err := strconv.ParseUint(rest, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid bit width %q", s)
	}
	return param.Width(uint32(bits))
}

func parseValues(s string) ([]uint64, error) {
	parts := strings.Split(s, ",")
	values := make([]uint64, len(parts))
	for i, p := range parts {
		v, err := strconv.ParseUint(p, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q", p)
		}
		values[i] = v
	}
	return values, nil
}
