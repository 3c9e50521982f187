package command

import "strings"

// HashTag returns the part of key that determines its slot: the content of the
// first {...} section if it is non-empty, the whole key otherwise
func HashTag(key string) string {
	open := strings.IndexByte(key, '{')
	if open < 0 {
		return key
	}
	end := strings.IndexByte(key[open+1:], '}')
	if end <= 0 {
		return key
	}
	return key[open+1 : open+1+end]
}
