package errors_test

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	apperr "github.com/auctionhub/auction-core/pkg/errors"
)

func TestNew_SetsHTTPStatus(t *testing.T) {
	err := apperr.New(apperr.KindSessionNotFound, "no such session")
	assert.Equal(t, http.StatusNotFound, err.HTTPStatus)
}

func TestWithCause_Unwraps(t *testing.T) {
	cause := fmt.Errorf("boom")
	err := apperr.New(apperr.KindInternal, "wrapped").WithCause(cause)
	assert.ErrorIs(t, err, cause)
}

func TestIs(t *testing.T) {
	err := apperr.ErrPriceBelowReserve
	assert.True(t, apperr.Is(err, apperr.KindPriceBelowReserve))
	assert.False(t, apperr.Is(err, apperr.KindSessionEnded))
}

func TestInternal_CarriesCorrelationID(t *testing.T) {
	err := apperr.Internal("corr-1", fmt.Errorf("driver failure"))
	assert.Equal(t, "corr-1", err.CorrelationID)
	assert.Equal(t, apperr.KindInternal, err.Kind)
}
