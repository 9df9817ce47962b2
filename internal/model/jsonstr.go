package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

var errBadString = errors.New("malformed JSON string")

// rawIndex maps every byte offset of a decoded JSON string to the offset in
// raw (the quoted JSON text) where the encoding of that byte starts. The last
// entry maps len(decoded) to the closing quote.
//
// Decoded byte counts follow encoding/json: escapes decode to their UTF-8
// form and unpaired surrogates decode to U+FFFD.
func rawIndex(raw []byte) ([]int, error) {
	if len(raw) < 2 || raw[0] != '"' || raw[len(raw)-1] != '"' {
		return nil, errBadString
	}

	end := len(raw) - 1
	idx := make([]int, 0, len(raw))
	for i := 1; i < end; {
		if raw[i] != '\\' {
			idx = append(idx, i)
			i++
			continue
		}
		if i+1 >= end {
			return nil, errBadString
		}
		switch raw[i+1] {
		case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
			idx = append(idx, i)
			i += 2
		case 'u':
			r, n, err := unicodeEscape(raw[i:end])
			if err != nil {
				return nil, err
			}
			for k := 0; k < utf8.RuneLen(r); k++ {
				idx = append(idx, i)
			}
			i += n
		default:
			return nil, errBadString
		}
	}
	return append(idx, end), nil
}

// unicodeEscape decodes a \uXXXX escape (or a surrogate pair of them) at the
// start of b and returns the rune and the number of raw bytes consumed.
func unicodeEscape(b []byte) (rune, int, error) {
	r, ok := hex4(b)
	if !ok {
		return 0, 0, errBadString
	}
	if !utf16.IsSurrogate(r) {
		return r, 6, nil
	}
	if len(b) >= 12 && b[6] == '\\' && b[7] == 'u' {
		if r2, ok := hex4(b[6:]); ok {
			if dec := utf16.DecodeRune(r, r2); dec != utf8.RuneError {
				return dec, 12, nil
			}
		}
	}
	return utf8.RuneError, 6, nil
}

func hex4(b []byte) (rune, bool) {
	if len(b) < 6 {
		return 0, false
	}
	n, err := strconv.ParseUint(string(b[2:6]), 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(n), true
}

// encodeStringContent returns s as JSON string content, without the
// surrounding quotes. HTML characters are left as they are.
func encodeStringContent(s string) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return "", err
	}
	out := bytes.TrimSuffix(buf.Bytes(), []byte("\n"))
	return string(out[1 : len(out)-1]), nil
}
