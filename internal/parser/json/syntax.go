package json

import (
	"fmt"
	"io"
)

// DefaultMaxNesting bounds container nesting in one document.
const DefaultMaxNesting = 512

// The go-json token stream drops ':' and ',' without checking them, so
// syntaxChecker validates the structural grammar of the bytes before the
// decoder sees them. Scalar contents (literals, numbers, escapes) are left to
// the decoder.
type syntaxState uint8

const (
	stTop           syntaxState = iota // between top-level values
	stValue                            // after ':' or ',' in an array
	stValueOrClose                     // after '['
	stKey                              // after ',' in an object
	stKeyOrClose                       // after '{'
	stColon                            // after a key
	stAfterValue                       // after a value inside a container
)

type syntaxError struct {
	Offset int64
	Line   int
	Msg    string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("%s at byte %d", e.Msg, e.Offset)
}

type syntaxChecker struct {
	r          io.Reader
	maxNesting int

	stack    []byte
	state    syntaxState
	inString bool
	isKey    bool
	escaped  bool
	inBare   bool

	off     int64
	line    int
	err     *syntaxError
	readErr error
}

func newSyntaxChecker(r io.Reader, maxNesting int) *syntaxChecker {
	if maxNesting <= 0 {
		maxNesting = DefaultMaxNesting
	}
	return &syntaxChecker{r: r, maxNesting: maxNesting, line: 1}
}

// Read passes bytes through up to the first structural error. The error
// itself is kept in c.err; the decoder only sees the input ending there.
func (c *syntaxChecker) Read(p []byte) (int, error) {
	if c.err != nil {
		return 0, io.EOF
	}
	n, err := c.r.Read(p)
	if err != nil && err != io.EOF {
		c.readErr = err
	}
	for i := 0; i < n; i++ {
		if !c.step(p[i]) {
			return i, nil
		}
		c.off++
		if p[i] == '\n' {
			c.line++
		}
	}
	return n, err
}

// failure returns the structural or read error that ended the input early.
func (c *syntaxChecker) failure() error {
	if c.err != nil {
		return c.err
	}
	return c.readErr
}

func (c *syntaxChecker) fail(b byte, msg string) bool {
	c.err = &syntaxError{Offset: c.off, Line: c.line, Msg: fmt.Sprintf("invalid character %q %s", b, msg)}
	return false
}

func (c *syntaxChecker) step(b byte) bool {
	if c.inString {
		switch {
		case c.escaped:
			c.escaped = false
		case b == '\\':
			c.escaped = true
		case b == '"':
			c.inString = false
			if c.isKey {
				c.state = stColon
			} else {
				c.afterValue()
			}
		}
		return true
	}
	if c.inBare {
		if isBare(b) {
			return true
		}
		c.inBare = false
		c.afterValue()
	}

	switch b {
	case ' ', '\t', '\r', '\n':
		return true
	}

	switch c.state {
	case stTop:
		return c.startValue(b)
	case stValue:
		return c.startValue(b)
	case stValueOrClose:
		if b == ']' {
			return c.close(b)
		}
		return c.startValue(b)
	case stKey, stKeyOrClose:
		if b == '"' {
			c.inString, c.isKey = true, true
			return true
		}
		if b == '}' && c.state == stKeyOrClose {
			return c.close(b)
		}
		return c.fail(b, "looking for object key")
	case stColon:
		if b == ':' {
			c.state = stValue
			return true
		}
		return c.fail(b, "after object key")
	default: // stAfterValue
		switch b {
		case ',':
			if c.stack[len(c.stack)-1] == '{' {
				c.state = stKey
			} else {
				c.state = stValue
			}
			return true
		case '}', ']':
			return c.close(b)
		}
		return c.fail(b, "after value")
	}
}

func (c *syntaxChecker) startValue(b byte) bool {
	switch {
	case b == '{' || b == '[':
		if len(c.stack) >= c.maxNesting {
			c.err = &syntaxError{Offset: c.off, Line: c.line, Msg: fmt.Sprintf("nesting deeper than %d", c.maxNesting)}
			return false
		}
		c.stack = append(c.stack, b)
		if b == '{' {
			c.state = stKeyOrClose
		} else {
			c.state = stValueOrClose
		}
	case b == '"':
		c.inString, c.isKey = true, false
	case isBare(b):
		c.inBare = true
	default:
		return c.fail(b, "looking for beginning of value")
	}
	return true
}

func (c *syntaxChecker) close(b byte) bool {
	open := byte('{')
	if b == ']' {
		open = '['
	}
	if len(c.stack) == 0 || c.stack[len(c.stack)-1] != open {
		return c.fail(b, "without matching open")
	}
	c.stack = c.stack[:len(c.stack)-1]
	c.afterValue()
	return true
}

func (c *syntaxChecker) afterValue() {
	if len(c.stack) == 0 {
		c.state = stTop
		return
	}
	c.state = stAfterValue
}

// isBare reports bytes that may appear in a number or a true/false/null
// literal.
func isBare(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b == '-' || b == '+' || b == '.'
}
