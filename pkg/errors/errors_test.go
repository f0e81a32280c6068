package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMetadataSplitsClientAndServerCodes(t *testing.T) {
	statuses := map[Code]int{
		CodeValidation:          http.StatusBadRequest,
		CodeUnauthorized:        http.StatusUnauthorized,
		CodeForbidden:           http.StatusForbidden,
		CodeNotFound:            http.StatusNotFound,
		CodeConflict:            http.StatusConflict,
		CodeIdempotency:         http.StatusConflict,
		CodePaymentVerification: http.StatusPaymentRequired,
		CodePartialFailure:      http.StatusBadGateway,
		CodeRateLimit:           http.StatusTooManyRequests,
		CodeTimeout:             http.StatusGatewayTimeout,
		CodeInvalidResponse:     http.StatusBadGateway,
		CodeInternal:            http.StatusInternalServerError,
		CodeDependency:          http.StatusServiceUnavailable,
	}
	for code, status := range statuses {
		meta := MetadataFor(code)
		require.Equal(t, status, meta.HTTPStatus, code)
		require.NotEmpty(t, meta.PublicMessage, code)
	}

	for _, code := range []Code{CodeInternal, CodeDependency, CodeInvalidResponse} {
		meta := MetadataFor(code)
		require.True(t, meta.Retryable, code)
		require.False(t, meta.MessageVisible, "%s must hide internal messages", code)
		require.False(t, meta.DetailsAllowed, code)
	}
	require.True(t, MetadataFor(CodeTimeout).Retryable)
	require.True(t, MetadataFor(CodeValidation).DetailsAllowed)
	require.False(t, MetadataFor(CodeValidation).Retryable)
	require.Equal(t, "payment could not be verified", MetadataFor(CodePaymentVerification).PublicMessage)
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	require.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestErrorStringIncludesCause(t *testing.T) {
	require.Equal(t, "NOT_FOUND: order missing", New(CodeNotFound, "order missing").Error())
	wrapped := Wrap(CodeDependency, stdErrors.New("dial tcp: refused"), "insert order")
	require.Equal(t, "DEPENDENCY_ERROR: insert order: dial tcp: refused", wrapped.Error())
}

func TestPublicMessageHidesServerDetail(t *testing.T) {
	require.Equal(t, "quantity must be positive", PublicMessage(New(CodeValidation, "quantity must be positive")))
	require.Equal(t, "dependency unavailable", PublicMessage(Wrap(CodeDependency, stdErrors.New("dial tcp 10.0.0.1:5432"), "insert order")))
	require.Equal(t, "internal server error", PublicMessage(stdErrors.New("pq: relation missing")))
	require.Equal(t, "validation failed", PublicMessage(New(CodeValidation, "")))
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeValidation, "missing foo")
	if base.Code() != CodeValidation {
		t.Fatalf("expected validation code, got %s", base.Code())
	}
	if base.Message() != "missing foo" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"field": "foo"}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "ctx")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeConflict {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestAsReturnsTypedError(t *testing.T) {
	err := New(CodeForbidden, "no entry")
	if got := As(err); got == nil || got.Code() != CodeForbidden {
		t.Fatalf("As failed to return typed error")
	}
	if As(nil) != nil {
		t.Fatalf("As(nil) should return nil")
	}
}

func TestIsMatchesWrappedCode(t *testing.T) {
	inner := New(CodeTimeout, "verify payment timed out")
	outer := fmt.Errorf("complete checkout: %w", inner)
	if !Is(outer, CodeTimeout) {
		t.Fatalf("expected Is to find timeout code through wrapping")
	}
	if Is(outer, CodeInternal) {
		t.Fatalf("did not expect internal code match")
	}
	if Is(nil, CodeTimeout) {
		t.Fatalf("nil error should never match")
	}
}

func TestDumpCollectsChain(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("connection refused"), "insert order")
	dump := Dump(err)
	if dump.Code != CodeDependency {
		t.Fatalf("expected dependency code in dump, got %s", dump.Code)
	}
	if len(dump.Chain) != 2 {
		t.Fatalf("expected two chain entries, got %d", len(dump.Chain))
	}
	if !dump.Retryable {
		t.Fatalf("dependency errors should be reported retryable")
	}
	if dump.PG != nil {
		t.Fatalf("plain errors carry no postgres detail")
	}
	fields := dump.Fields()
	if fields["error_code"] != CodeDependency || fields["retryable"] != true {
		t.Fatalf("unexpected log fields %v", fields)
	}
}

func TestDumpExtractsPostgresDetail(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "ux_orders_payment_id", Detail: "Key (payment_id) already exists."}
	dump := Dump(Wrap(CodeConflict, pgErr, "insert order"))
	if dump.PG == nil || dump.PG.Code != "23505" {
		t.Fatalf("expected postgres detail, got %+v", dump.PG)
	}
	fields := dump.Fields()
	if fields["pg_constraint"] != "ux_orders_payment_id" {
		t.Fatalf("expected constraint in fields, got %v", fields)
	}
}
