package source

import "errors"

// ErrNoLine signals that no line is currently available but the source is
// not exhausted; callers should poll again. Exhausted sources return io.EOF.
var ErrNoLine = errors.New("no line available")

// ErrLineTooLong signals that one line exceeded the size bound and was
// discarded. It is a per-line error: the source stays usable and the next
// call yields the following line.
var ErrLineTooLong = errors.New("line exceeds size limit")
