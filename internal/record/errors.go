package record

import "errors"

// ErrMissingEntity is returned by Build when the input has no entity id.
var ErrMissingEntity = errors.New("page has no entity id")
