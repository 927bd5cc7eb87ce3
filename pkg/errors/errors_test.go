package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeMetadata(t *testing.T) {
	cases := map[Code]Metadata{
		CodeValidation:    {HTTPStatus: http.StatusBadRequest, PublicMessage: "validation failed", DetailsAllowed: true, ExposeMessage: true},
		CodeBusinessRule:  {HTTPStatus: http.StatusBadRequest, PublicMessage: "request violates a business rule", DetailsAllowed: true, ExposeMessage: true},
		CodeUnauthorized:  {HTTPStatus: http.StatusUnauthorized, PublicMessage: "authentication required", ExposeMessage: true},
		CodeNotFound:      {HTTPStatus: http.StatusNotFound, PublicMessage: "resource not found", ExposeMessage: true},
		CodeStateConflict: {HTTPStatus: http.StatusUnprocessableEntity, PublicMessage: "state transition disallowed", DetailsAllowed: true, ExposeMessage: true},
		CodeIdempotency:   {HTTPStatus: http.StatusConflict, PublicMessage: "idempotency key reused", DetailsAllowed: true, ExposeMessage: true},
		CodeRateLimit:     {HTTPStatus: http.StatusTooManyRequests, PublicMessage: "rate limit exceeded", ExposeMessage: true},
		CodeInternal:      {HTTPStatus: http.StatusInternalServerError, PublicMessage: "internal server error", Retryable: true},
		CodeDependency:    {HTTPStatus: http.StatusServiceUnavailable, PublicMessage: "dependency unavailable", Retryable: true, DetailsAllowed: true},
		CodePaymentInit:   {HTTPStatus: http.StatusInternalServerError, PublicMessage: "payment could not be initialized", Retryable: true, DetailsAllowed: true, ExposeMessage: true},
	}
	for code, want := range cases {
		assert.Equal(t, want, MetadataFor(code), code)
	}
	assert.Equal(t, MetadataFor(CodeInternal), MetadataFor("SOMETHING_UNKNOWN"))
}

func TestConstructorsAndAccessors(t *testing.T) {
	base := New(CodeValidation, "missing phone")
	assert.Equal(t, CodeValidation, base.Code())
	assert.Equal(t, "missing phone", base.Message())
	assert.Nil(t, base.Details())
	assert.Equal(t, map[string]string{"phone": "is required"}, base.WithDetails(map[string]string{"phone": "is required"}).Details())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve stock")
	assert.ErrorIs(t, wrapped, cause)

	var nilErr *Error
	assert.Equal(t, CodeInternal, nilErr.Code())
	assert.Empty(t, nilErr.Error())
}

func TestChainLookups(t *testing.T) {
	inner := New(CodeBusinessRule, "insufficient wallet balance")
	outer := fmt.Errorf("create order: %w", inner)

	assert.Same(t, inner, As(outer))
	assert.Nil(t, As(nil))
	assert.True(t, IsCode(outer, CodeBusinessRule))
	assert.False(t, IsCode(outer, CodeValidation))
	assert.False(t, IsCode(nil, CodeInternal))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(Wrap(CodeDependency, stdErrors.New("gateway timeout"), "verify transaction")))
	assert.False(t, IsRetryable(New(CodeBusinessRule, "insufficient stock")))
	assert.True(t, IsRetryable(stdErrors.New("untyped")), "untyped errors count as internal")
	assert.False(t, IsRetryable(nil))
}

func TestErrorString(t *testing.T) {
	err := Wrap(CodeDependency, stdErrors.New("dial tcp: timeout"), "verify transaction")
	assert.Equal(t, "DEPENDENCY_ERROR: verify transaction: dial tcp: timeout", err.Error())
	assert.Equal(t, "NOT_FOUND: order ORD-1 not found", Newf(CodeNotFound, "order %s not found", "ORD-1").Error())
}

func TestDump(t *testing.T) {
	dump := Dump(Wrap(CodeDependency, stdErrors.New("dial tcp: timeout"), "verify transaction"))
	assert.Equal(t, CodeDependency, dump.Code)
	assert.Len(t, dump.Chain, 2)
	assert.Equal(t, ErrorDump{}, Dump(nil))

	fields := Dump(New(CodeValidation, "bad input")).Fields()
	assert.Equal(t, CodeValidation, fields["error_code"])
	assert.NotContains(t, fields, "pg_code")
	assert.NotContains(t, fields, "error_chain", "single entry chains are omitted")
}

func TestDumpReadsPostgresErrors(t *testing.T) {
	pgxErr := &pgconn.PgError{Code: "23505", ConstraintName: "skus_code_key", TableName: "skus"}
	fields := Dump(fmt.Errorf("insert sku: %w", pgxErr)).Fields()
	assert.Equal(t, "23505", fields["pg_code"])
	assert.Equal(t, "skus_code_key", fields["pg_constraint"])
	assert.Equal(t, "skus", fields["pg_table"])

	pqErr := &pq.Error{Code: "23503", Table: "orders", Detail: "user missing"}
	dump := Dump(Wrap(CodeConflict, pqErr, "insert order"))
	require.Equal(t, CodeConflict, dump.Code)
	assert.Equal(t, "23503", dump.PGCode)
	assert.Equal(t, "user missing", dump.PGDetail)
}
