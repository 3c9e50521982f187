package command

import (
	"math"
	"strconv"
	"strings"

	"github.com/ValentinKolb/sKV/lib/storage"
)

// parseInt is a strict decimal parser: an optional leading '-', no '+',
// no leading zeros (except "0" itself), no whitespace and the value must fit int64
func parseInt(s string) (int64, bool) {
	if s == "" || len(s) > 20 {
		return 0, false
	}
	digits := s
	if digits[0] == '-' {
		digits = digits[1:]
		if digits == "" || digits == "0" {
			return 0, false
		}
	}
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// parseFloat accepts every finite decimal representation strconv understands
func parseFloat(s string) (float64, bool) {
	if s == "" || strings.TrimSpace(s) != s {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// parseType resolves a type argument (string, hash, list, zset, set)
func parseType(s string) (storage.DataType, bool) {
	return storage.ParseDataType(s)
}

// optionArg returns the argument following the option at argv[i]
func optionArg(argv []string, i int) (string, bool) {
	if i+1 >= len(argv) {
		return "", false
	}
	return argv[i+1], true
}
