package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPStatusFromError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{ErrValidation, http.StatusBadRequest},
		{fmt.Errorf("field \"body\" is required: %w", ErrValidation), http.StatusBadRequest},
		{ErrDuplicateIdentity, http.StatusBadRequest},
		{ErrUnknownRecipient, http.StatusBadRequest},
		{ErrInvalidCredentials, http.StatusBadRequest},
		{ErrUnauthorized, http.StatusUnauthorized},
		{fmt.Errorf("message not to bob: %w", ErrUnauthorized), http.StatusUnauthorized},
		{ErrInvalidToken, http.StatusUnauthorized},
		{ErrNotFound, http.StatusNotFound},
		{errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		require.Equal(t, tc.want, HTTPStatusFromError(tc.err), "%v", tc.err)
	}
}
