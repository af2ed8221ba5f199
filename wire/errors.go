package wire

import (
	"errors"
	"fmt"
)

// Codec errors (§4.3.6, §7) returned on malformed input. There is no
// single CodecError type: ErrUnexpectedEnd and ErrInvalidUTF8 are
// sentinel errors returned by Reader methods, which callers can
// compare with errors.Is; UnknownTypeError carries the
// offending hash code.
var (
	ErrUnexpectedEnd = errors.New("wire: unexpected end of buffer")
	ErrInvalidUTF8   = errors.New("wire: string is not valid utf-8")
)

// UnknownTypeError is returned by ReadObject when a tagged object's
// hash_code has no registered handler.
type UnknownTypeError struct {
	Hash int32
}

func (e *UnknownTypeError) Error() string {
	return fmt.Sprintf("wire: unknown type hash_code %d", e.Hash)
}

func (e *UnknownTypeError) Is(target error) bool {
	_, ok := target.(*UnknownTypeError)
	return ok
}
