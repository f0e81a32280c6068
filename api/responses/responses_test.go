package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	pkgerrors "github.com/plantomart/plantomart-backend/pkg/errors"
	"github.com/plantomart/plantomart-backend/pkg/logger"
	"github.com/plantomart/plantomart-backend/pkg/pagination"
)

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(context.Background(), logger.Nop(), rec, errors.New("pq: connection refused"))

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decode(t, rec)
	require.Equal(t, false, body["success"])
	require.Equal(t, "internal server error", body["message"])
	require.Equal(t, string(pkgerrors.CodeInternal), body["code"])
}

func TestWriteErrorExposesClientMessages(t *testing.T) {
	rec := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "Missing required fields").
		WithDetails(map[string]any{"fields": []string{"user_uuid"}})
	WriteError(context.Background(), nil, rec, err)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode(t, rec)
	require.Equal(t, "Missing required fields", body["message"])
	require.NotNil(t, body["details"])
}

func TestWriteErrorStatusMapping(t *testing.T) {
	cases := map[pkgerrors.Code]int{
		pkgerrors.CodeNotFound:            http.StatusNotFound,
		pkgerrors.CodeConflict:            http.StatusConflict,
		pkgerrors.CodePaymentVerification: http.StatusPaymentRequired,
		pkgerrors.CodePartialFailure:      http.StatusBadGateway,
		pkgerrors.CodeTimeout:             http.StatusGatewayTimeout,
		pkgerrors.CodeRateLimit:           http.StatusTooManyRequests,
		pkgerrors.CodeDependency:          http.StatusServiceUnavailable,
	}
	for code, status := range cases {
		rec := httptest.NewRecorder()
		WriteError(context.Background(), nil, rec, pkgerrors.New(code, "x"))
		require.Equal(t, status, rec.Code, "code %s", code)
	}
}

func TestWritePageIncludesPagination(t *testing.T) {
	rec := httptest.NewRecorder()
	WritePage(rec, []string{"a"}, pagination.Params{Page: 2, Limit: 5}.Result(1))

	body := decode(t, rec)
	require.Equal(t, true, body["success"])
	require.Equal(t, map[string]any{"page": float64(2), "limit": float64(5), "count": float64(1)}, body["pagination"])
}
