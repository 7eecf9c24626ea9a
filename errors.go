package rollingfetch

import "errors"

// ErrInvalidArgument is returned by configuration setters and constructor
// options when given a value that can never be valid: a window below 2, a
// negative wait timeout, a nil logger. These errors are local and
// synchronous; the previous configuration is always left untouched.
//
// Use [errors.Is] to test for it:
//
//	if err := s.SetWindow(1); errors.Is(err, rollingfetch.ErrInvalidArgument) {
//	    // handle bad configuration
//	}
var ErrInvalidArgument = errors.New("invalid argument")
