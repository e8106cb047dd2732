package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestConstructorsMapToHTTPStatus(t *testing.T) {
	cases := []struct {
		err    *ServiceError
		status int
		code   ErrorCode
	}{
		{InvalidInput("bad"), http.StatusBadRequest, CodeInvalidInput},
		{Unauthorized(""), http.StatusUnauthorized, CodeUnauthorized},
		{InvalidToken(nil), http.StatusForbidden, CodeForbidden},
		{Forbidden(""), http.StatusForbidden, CodeForbidden},
		{NotFound("product"), http.StatusNotFound, CodeNotFound},
		{Conflict("dup"), http.StatusConflict, CodeConflict},
		{InsufficientStock(1, 2), http.StatusBadRequest, CodeInsufficientStock},
		{RateLimitExceeded(5, "1s"), http.StatusTooManyRequests, CodeRateLimitExceeded},
		{Internal("", nil), http.StatusInternalServerError, CodeInternal},
	}
	for _, tc := range cases {
		if tc.err.HTTPStatus != tc.status {
			t.Fatalf("%s: status = %d, want %d", tc.code, tc.err.HTTPStatus, tc.status)
		}
		if tc.err.Code != tc.code {
			t.Fatalf("code = %s, want %s", tc.err.Code, tc.code)
		}
	}
}

func TestGetServiceErrorThroughWrapping(t *testing.T) {
	wrapped := fmt.Errorf("create order: %w", InsufficientStock(0, 3))
	se := GetServiceError(wrapped)
	if se == nil {
		t.Fatal("expected service error in chain")
	}
	if se.Details["available"] != 0 || se.Details["requested"] != 3 {
		t.Fatalf("unexpected details: %v", se.Details)
	}
	if !stderrors.Is(wrapped, InsufficientStock(9, 9)) {
		t.Fatal("errors.Is should match on code")
	}
	if stderrors.Is(wrapped, NotFound("")) {
		t.Fatal("errors.Is should not match a different code")
	}
	if GetServiceError(stderrors.New("plain")) != nil {
		t.Fatal("plain errors carry no service error")
	}
}

func TestWithDetailsDoesNotMutateOriginal(t *testing.T) {
	base := InvalidInput("missing")
	derived := base.WithDetails("field", "title")
	if len(base.Details) != 0 {
		t.Fatalf("base mutated: %v", base.Details)
	}
	if derived.Details["field"] != "title" {
		t.Fatalf("derived details missing: %v", derived.Details)
	}
}
