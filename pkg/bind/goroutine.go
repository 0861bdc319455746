package bind

import (
	"bytes"
	"runtime"
	"strconv"
)

// curGoroutineID extracts the running goroutine's id from the first line
// of its stack trace ("goroutine 18 [running]:"). The runtime exposes no
// public API for this; the technique is the one net/http's HTTP/2 code
// uses for its own ownership checks. Store confinement only compares ids
// for equality, so the parse cost is paid once per accessor call.
func curGoroutineID() uint64 {
	var buf [64]byte
	b := buf[:runtime.Stack(buf[:], false)]
	b = bytes.TrimPrefix(b, []byte("goroutine "))
	if i := bytes.IndexByte(b, ' '); i >= 0 {
		b = b[:i]
	}
	id, err := strconv.ParseUint(string(b), 10, 64)
	if err != nil {
		return 0
	}
	return id
}
