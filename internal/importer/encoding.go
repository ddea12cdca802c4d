package importer

import (
	"fmt"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"
)

// Encoding tags stored on the import job.
const (
	EncodingUTF8     = "utf-8"
	EncodingShiftJIS = "shift_jis"
)

// detectSampleSize bounds how much of the file the detector inspects.
const detectSampleSize = 4096

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectEncoding classifies a byte buffer as UTF-8 or Shift_JIS. A UTF-8 BOM
// short-circuits; otherwise the first 4KB are checked for strict UTF-8
// multi-byte sequence structure and any violation falls back to Shift_JIS.
// Best-effort heuristic, never fails.
func DetectEncoding(data []byte) string {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		return EncodingUTF8
	}

	sample := data
	if len(sample) > detectSampleSize {
		sample = sample[:detectSampleSize]
	}

	for i := 0; i < len(sample); {
		b := sample[i]
		switch {
		case b < 0x80:
			i++
		case b&0xE0 == 0xC0:
			if !validContinuation(sample, i+1, 1) {
				return EncodingShiftJIS
			}
			i += 2
		case b&0xF0 == 0xE0:
			if !validContinuation(sample, i+1, 2) {
				return EncodingShiftJIS
			}
			i += 3
		case b&0xF8 == 0xF0:
			if !validContinuation(sample, i+1, 3) {
				return EncodingShiftJIS
			}
			i += 4
		default:
			// High bit set without a valid lead byte
			return EncodingShiftJIS
		}
	}

	return EncodingUTF8
}

// validContinuation checks for n continuation bytes (10xxxxxx) at offset.
// A sequence truncated by the sample boundary is not held against the file.
func validContinuation(data []byte, offset, n int) bool {
	for i := 0; i < n; i++ {
		if offset+i >= len(data) {
			return true
		}
		if data[offset+i]&0xC0 != 0x80 {
			return false
		}
	}
	return true
}

// DecodeText converts raw file bytes to a UTF-8 string according to the
// detected encoding, stripping a leading BOM.
func DecodeText(data []byte, encoding string) (string, error) {
	if len(data) >= 3 && data[0] == utf8BOM[0] && data[1] == utf8BOM[1] && data[2] == utf8BOM[2] {
		data = data[3:]
	}

	if encoding == EncodingShiftJIS {
		decoded, _, err := transform.Bytes(japanese.ShiftJIS.NewDecoder(), data)
		if err != nil {
			return "", fmt.Errorf("failed to decode Shift_JIS content: %w", err)
		}
		return string(decoded), nil
	}

	return string(data), nil
}
