package resp

import "strconv"

// Status builds a `+`-prefixed single-line status reply.
func Status(s string) []byte {
	return append([]byte("+"+s), '\r', '\n')
}

// Error builds a `-`-prefixed error reply.
func Error(msg string) []byte {
	return append([]byte("-"+msg), '\r', '\n')
}

// Int builds a `:`-prefixed integer reply.
func Int(n int64) []byte {
	return append([]byte(":"+strconv.FormatInt(n, 10)), '\r', '\n')
}

// Bulk builds a `$LEN\r\n<bytes>\r\n` reply.
func Bulk(b []byte) []byte {
	out := make([]byte, 0, len(b)+16)
	out = append(out, '$')
	out = strconv.AppendInt(out, int64(len(b)), 10)
	out = append(out, '\r', '\n')
	out = append(out, b...)
	out = append(out, '\r', '\n')
	return out
}

// NullBulk builds the `$-1\r\n` null reply.
func NullBulk() []byte {
	return []byte("$-1\r\n")
}

// MultiBulkHeader builds a `*COUNT\r\n` header to precede count bulk
// replies.
func MultiBulkHeader(count int) []byte {
	out := make([]byte, 0, 8)
	out = append(out, '*')
	out = strconv.AppendInt(out, int64(count), 10)
	out = append(out, '\r', '\n')
	return out
}

// NullMultiBulk builds the `*-1\r\n` null multi-bulk reply.
func NullMultiBulk() []byte {
	return []byte("*-1\r\n")
}
