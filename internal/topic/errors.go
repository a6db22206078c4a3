package topic

import "errors"

// ErrMalformed is returned by Parse for topics outside the simulator namespace.
var ErrMalformed = errors.New("topic: malformed topic")
