package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
)

// PrintError writes err as "error: <outermost>" followed by one
// "  caused by: <cause>" line per wrapped layer.
func PrintError(w io.Writer, err error) {
	chain := causeChain(err)
	if len(chain) == 0 {
		return
	}
	fmt.Fprintf(w, "error: %s\n", chain[0])
	for _, cause := range chain[1:] {
		fmt.Fprintf(w, "  caused by: %s\n", cause)
	}
}

// causeChain splits err into one message per wrapping layer. Each layer's
// message has its cause's text trimmed off, and layers whose text is already
// part of the previous line (sentinels used as prefixes) are dropped.
func causeChain(err error) []string {
	var out []string
	for err != nil {
		next := errors.Unwrap(err)
		msg := err.Error()
		if next != nil {
			msg = strings.TrimSuffix(msg, ": "+next.Error())
		}
		if msg != "" && (len(out) == 0 || !strings.Contains(out[len(out)-1], msg)) {
			out = append(out, msg)
		}
		err = next
	}
	return out
}
