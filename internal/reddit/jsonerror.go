package reddit

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// MaxDepth is the deepest object/array nesting accepted in a listing body
const MaxDepth = 512

// JSONErrorKind classifies a malformed listing body
type JSONErrorKind int

const (
	JSONErrorDepth JSONErrorKind = iota + 1
	JSONErrorStateMismatch
	JSONErrorControlCharacter
	JSONErrorSyntax
	JSONErrorUTF8
)

var jsonErrorMessages = map[JSONErrorKind]string{
	JSONErrorDepth:            "JSON Error - Maximum stack depth exceeded",
	JSONErrorStateMismatch:    "JSON Error - Underflow or the modes mismatch",
	JSONErrorControlCharacter: "JSON Error - Unexpected control character found",
	JSONErrorSyntax:           "JSON Error - Syntax error, malformed JSON",
	JSONErrorUTF8:             "JSON Error - Malformed UTF-8 characters, possibly incorrectly encoded",
}

// Message returns the fixed log message for the kind
func (k JSONErrorKind) Message() string {
	if msg, ok := jsonErrorMessages[k]; ok {
		return msg
	}
	return jsonErrorMessages[JSONErrorSyntax]
}

// String implements fmt.Stringer
func (k JSONErrorKind) String() string {
	switch k {
	case JSONErrorDepth:
		return "depth"
	case JSONErrorStateMismatch:
		return "state_mismatch"
	case JSONErrorControlCharacter:
		return "control_character"
	case JSONErrorUTF8:
		return "utf8"
	default:
		return "syntax"
	}
}

// JSONError reports a listing body that could not be parsed
type JSONError struct {
	Kind JSONErrorKind
	Err  error
}

func (e *JSONError) Error() string {
	if e.Err == nil {
		return e.Kind.Message()
	}
	return fmt.Sprintf("%s: %v", e.Kind.Message(), e.Err)
}

func (e *JSONError) Unwrap() error {
	return e.Err
}

// DecodeListing parses a listing body. Malformed input yields a *JSONError;
// well-formed JSON of the wrong shape yields a plain decode error.
// When a body is broken in more than one way, the error nearest the start wins.
func DecodeListing(body []byte) (*Listing, error) {
	utf8At := invalidUTF8Offset(body)
	depthAt := depthExceededOffset(body)

	var raw json.RawMessage
	decodeErr := json.Unmarshal(body, &raw)
	decodeAt := -1
	if decodeErr != nil {
		decodeAt = syntaxErrorOffset(decodeErr, len(body))
	}

	switch {
	case utf8At >= 0 && precedes(utf8At, depthAt) && precedes(utf8At, decodeAt):
		return nil, &JSONError{Kind: JSONErrorUTF8, Err: fmt.Errorf("invalid UTF-8 at byte %d", utf8At)}
	case depthAt >= 0 && precedes(depthAt, decodeAt):
		return nil, &JSONError{Kind: JSONErrorDepth, Err: fmt.Errorf("nesting depth exceeds %d at byte %d", MaxDepth, depthAt)}
	case decodeErr != nil:
		return nil, &JSONError{Kind: classifySyntaxError(body, decodeErr), Err: decodeErr}
	}

	var listing Listing
	if err := json.Unmarshal(raw, &listing); err != nil {
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	return &listing, nil
}

// precedes reports whether offset a comes no later than b, where a negative b means no error
func precedes(a, b int) bool {
	return b < 0 || a <= b
}

// invalidUTF8Offset returns the index of the first byte that is not valid UTF-8, or -1
func invalidUTF8Offset(body []byte) int {
	for i := 0; i < len(body); {
		r, size := utf8.DecodeRune(body[i:])
		if r == utf8.RuneError && size == 1 {
			return i
		}
		i += size
	}
	return -1
}

// depthExceededOffset returns the index of the first bracket outside string literals
// that opens a level deeper than MaxDepth, or -1.
// It stops on unbalanced input; the decoder reports that case.
func depthExceededOffset(body []byte) int {
	depth := 0
	inString, escaped := false, false

	for i, b := range body {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > MaxDepth {
				return i
			}
		case '}', ']':
			if depth == 0 {
				return -1
			}
			depth--
		}
	}

	return -1
}

// syntaxErrorOffset returns the index of the byte the decoder rejected.
// Errors without a position, such as unexpected end of input, sit at the end of the body.
func syntaxErrorOffset(err error, size int) int {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return size
	}
	at := int(syntaxErr.Offset) - 1
	if at < 0 || at > size {
		return size
	}
	return at
}

func classifySyntaxError(body []byte, err error) JSONErrorKind {
	var syntaxErr *json.SyntaxError
	if !errors.As(err, &syntaxErr) {
		return JSONErrorSyntax
	}

	msg := syntaxErr.Error()
	switch {
	case strings.Contains(msg, "in string literal"):
		return JSONErrorControlCharacter
	case strings.HasPrefix(msg, "invalid character '}' after array element"),
		strings.HasPrefix(msg, "invalid character ']' after object key:value pair"),
		closesEmptyContainerWrongly(body, int(syntaxErr.Offset)-1):
		return JSONErrorStateMismatch
	default:
		return JSONErrorSyntax
	}
}

// closesEmptyContainerWrongly reports whether body[at] closes a container that was
// just opened with the other bracket kind, as in [} or {].
func closesEmptyContainerWrongly(body []byte, at int) bool {
	if at <= 0 || at >= len(body) {
		return false
	}

	prev := at - 1
	for prev >= 0 && isJSONSpace(body[prev]) {
		prev--
	}
	if prev < 0 {
		return false
	}

	switch body[at] {
	case '}':
		return body[prev] == '['
	case ']':
		return body[prev] == '{'
	}
	return false
}

func isJSONSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}
