package pathparams

import (
	"errors"
	"net/http"
)

// APIError is the JSON body written for a rejected request.
type APIError struct {
	Status   int     `json:"-"`
	Message  string  `json:"message"`
	Location *string `json:"location"`
}

func (e APIError) Error() string {
	return e.Message
}

// Classify maps any decode error to its response. Errors that are not a
// *Rejection are treated as KindUnknown.
func Classify(err error) APIError {
	rej := AsRejection(err)
	if rej == nil {
		rej = &Rejection{Kind: KindUnknown}
	}
	out := APIError{
		Status:  StatusFor(rej.Kind),
		Message: rej.Error(),
	}
	if loc, ok := rej.Location(); ok {
		out.Location = &loc
	}
	return out
}

// AsRejection unwraps err into a *Rejection, wrapping foreign errors as
// KindUnknown. It returns nil for a nil error.
func AsRejection(err error) *Rejection {
	if err == nil {
		return nil
	}
	var rej *Rejection
	if errors.As(err, &rej) && rej != nil {
		return rej
	}
	return &Rejection{Kind: KindUnknown, Err: err}
}

func StatusFor(k Kind) int {
	if k.Class() == ClassClient {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}
