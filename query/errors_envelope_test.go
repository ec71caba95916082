package query

import (
	"context"
	"net/http"
	"testing"

	"github.com/goliatone/go-credits/core"
	goerrors "github.com/goliatone/go-errors"
)

func TestGetCreditsByOwnerMessage_ValidateReturnsRichError(t *testing.T) {
	err := (GetCreditsByOwnerMessage{}).Validate()
	if err == nil {
		t.Fatalf("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorBadInput {
		t.Fatalf("expected %q text code, got %q", core.ErrorBadInput, rich.TextCode)
	}
	if rich.Code != http.StatusBadRequest {
		t.Fatalf("expected %d code, got %d", http.StatusBadRequest, rich.Code)
	}
	validation := rich.AllValidationErrors()
	if len(validation) == 0 {
		t.Fatalf("expected validation errors in envelope")
	}
	if validation[0].Field != "owner" {
		t.Fatalf("expected owner validation field, got %q", validation[0].Field)
	}
}

func TestListPurchasesMessage_RejectsNegativePaging(t *testing.T) {
	if err := (ListPurchasesMessage{Filter: core.PurchaseFilter{Limit: -1}}).Validate(); !core.IsErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for negative limit, got %v", err)
	}
	if err := (ListPurchasesMessage{Filter: core.PurchaseFilter{Offset: -1}}).Validate(); !core.IsErrorCode(err, core.ErrorBadInput) {
		t.Fatalf("expected bad input for negative offset, got %v", err)
	}
}

func TestGetCreditQuery_NilReaderReturnsRichError(t *testing.T) {
	var q *GetCreditQuery
	_, err := q.Query(context.Background(), GetCreditMessage{TokenID: 1})
	if err == nil {
		t.Fatalf("expected dependency error")
	}
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.ErrorInternal, rich.TextCode)
	}
}
