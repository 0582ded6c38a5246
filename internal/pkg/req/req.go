/*
Package req provides helper functions for HTTP request parsing and data binding.

It encapsulates JSON body binding with strict field checking and size
constraints, returning application errors ready for the response layer.
*/
package req

import (
	"encoding/json"
	"net/http"
	"strings"

	"chatcore/internal/pkg/errs"
)

// MaxBodySize limits the request body read during JSON binding.
const MaxBodySize int64 = 1 << 20 // 1 MB

// BindJSON binds the JSON request body to the destination struct dst.
// Unknown fields and trailing content are rejected.
func BindJSON(r *http.Request, dst any) *errs.CustomError {
	contentType := r.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "application/json") {
		return errs.NewError(errs.ErrUnsupportedMediaType)
	}

	decoder := json.NewDecoder(http.MaxBytesReader(nil, r.Body, MaxBodySize))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(dst); err != nil {
		return errs.NewError(errs.ErrInvalidJSONFormat)
	}

	if decoder.More() {
		return errs.NewError(errs.ErrExtraContentInBody)
	}

	return nil
}
