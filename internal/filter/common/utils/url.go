package utils

// URLTail returns at most the last n bytes of rawURL. Cache keys use it to
// bound their size without hashing.
func URLTail(rawURL string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(rawURL) <= n {
		return rawURL
	}
	return rawURL[len(rawURL)-n:]
}
