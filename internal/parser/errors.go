package parser

import (
	"errors"
	"fmt"
)

// ErrEmptyMessage is returned (wrapped in MalformedMessageError) for input
// that contains nothing but whitespace
var ErrEmptyMessage = errors.New("empty message")

// MalformedMessageError means the input could not be read as an Internet
// message at all
type MalformedMessageError struct {
	Err error
}

func (e *MalformedMessageError) Error() string {
	return fmt.Sprintf("malformed message: %v", e.Err)
}

func (e *MalformedMessageError) Unwrap() error {
	return e.Err
}

// UnsupportedEncodingError reports a part whose charset or transfer encoding
// is unknown. The part is still decoded on a best-effort basis, so this error
// only ever shows up in Message.Warnings.
type UnsupportedEncodingError struct {
	Part string // dotted part path, "1" is the root
	Err  error
}

func (e *UnsupportedEncodingError) Error() string {
	return fmt.Sprintf("part %s: unsupported encoding: %v", e.Part, e.Err)
}

func (e *UnsupportedEncodingError) Unwrap() error {
	return e.Err
}

// IsMalformed reports whether err is, or wraps, a MalformedMessageError
func IsMalformed(err error) bool {
	var me *MalformedMessageError
	return errors.As(err, &me)
}
