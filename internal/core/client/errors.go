package client

import (
	"errors"
	"net/http"
)

func asStatus(err error) (*StatusError, bool) {
	var serr *StatusError
	if errors.As(err, &serr) {
		return serr, true
	}
	return nil, false
}

// IsNotFound reports whether err is a 404 from a service.
func IsNotFound(err error) bool {
	serr, ok := asStatus(err)
	return ok && serr.Code == http.StatusNotFound
}
