package documents

import "errors"

// ErrUnsupportedFormat indicates the declared mime type has no extractor.
var ErrUnsupportedFormat = errors.New("unsupported document format")

// ErrCorruptDocument indicates the bytes could not be parsed as the declared format.
var ErrCorruptDocument = errors.New("corrupt document")
