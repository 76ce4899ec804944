package replication

import (
	"bytes"
	"fmt"

	"github.com/cuemby/emberdb/pkg/object"
	"github.com/cuemby/emberdb/pkg/session"
)

// noBulkArg tells serializeCommand there is no LEN-prefixed final
// argument, for the monitor feed's plain inline framing.
const noBulkArg = -1

// serializeCommand reserializes argv as spec.md §4.H's feed line:
// tokens joined by single spaces, with the token at bulkArgIndex (if
// any) preceded by a "LEN\r\n" line holding its own byte length.
// Terminated by CRLF.
func serializeCommand(argv [][]byte, bulkArgIndex int) []byte {
	var b bytes.Buffer
	for i, tok := range argv {
		if i > 0 {
			b.WriteByte(' ')
		}
		if i == bulkArgIndex {
			fmt.Fprintf(&b, "%d\r\n", len(tok))
		}
		b.Write(tok)
	}
	b.WriteString("\r\n")
	return b.Bytes()
}

// enqueueRaw queues b on s's reply stream, the same
// allocate-enqueue-release pattern pkg/command's helpers use.
func enqueueRaw(s *session.Session, b []byte) {
	v := object.NewString(b)
	s.Enqueue(v)
	v.DecrRef()
}

// selectLine builds the SELECT prefix spec.md §4.H requires whenever a
// feed target's last-selected DB differs from the command's DB.
func selectLine(dbIndex int) []byte {
	return []byte(fmt.Sprintf("SELECT %d\r\n", dbIndex))
}
