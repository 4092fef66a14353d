package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHTTPStatusCode(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("lookup: %w", ErrDocumentNotFound), http.StatusNotFound},
		{fmt.Errorf("weights: %w", ErrUnknownTag), http.StatusBadRequest},
		{ErrInvalidInput, http.StatusBadRequest},
		{ErrIndexNotBuilt, http.StatusServiceUnavailable},
		{fmt.Errorf("search: %w", ErrTimeout), http.StatusGatewayTimeout},
		{ErrMalformedShard, http.StatusInternalServerError},
		{New(ErrInternal, http.StatusTeapot, "brewing"), http.StatusTeapot},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, HTTPStatusCode(tc.err), tc.err.Error())
	}
}

func TestAppErrorUnwraps(t *testing.T) {
	err := fmt.Errorf("handler: %w", Newf(ErrDocumentNotFound, http.StatusNotFound, "document %d not found", 7))
	assert.True(t, Is(err, ErrDocumentNotFound))

	var appErr *AppError
	assert.True(t, As(err, &appErr))
	assert.Equal(t, "document 7 not found", appErr.Message)
	assert.Equal(t, "document not found: document 7 not found", appErr.Error())
}
