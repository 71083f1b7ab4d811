package dto

import (
	"testing"

	"github.com/gin-gonic/gin/binding"
	"github.com/stretchr/testify/assert"
)

// --- SanitizeStruct tests ---

func TestSanitizeStruct_TrimsWhitespace(t *testing.T) {
	req := BankAccountRequest{
		BankCode:      "  bca ",
		AccountNumber: " 1234567890 ",
		AccountHolder: " Budi Santoso ",
	}
	SanitizeStruct(&req)

	assert.Equal(t, "bca", req.BankCode)
	assert.Equal(t, "1234567890", req.AccountNumber)
	assert.Equal(t, "Budi Santoso", req.AccountHolder)
}

func TestSanitizeStruct_EscapesHTML(t *testing.T) {
	req := BankAccountRequest{AccountHolder: "Budi <script>alert('x')</script>"}
	SanitizeStruct(&req)

	assert.Contains(t, req.AccountHolder, "&lt;script&gt;")
	assert.NotContains(t, req.AccountHolder, "<script>")
}

func TestSanitizeStruct_HandlesPointerString(t *testing.T) {
	type withPointer struct {
		Note *string
		Nil  *string
	}
	note := "  settle asap  "
	req := withPointer{Note: &note}
	SanitizeStruct(&req)

	assert.Equal(t, "settle asap", *req.Note)
	assert.Nil(t, req.Nil)
}

func TestSanitizeStruct_NonPointerIsNoOp(t *testing.T) {
	s := "hello"
	SanitizeStruct(s) // should not panic
}

// --- Custom Validator tests ---

func TestSafeID_Valid(t *testing.T) {
	cases := []string{
		"req-001",
		"REQ_002",
		"a.b.c",
		"simple123",
		"6f1c2d9e-8b7a-4c3d-9e2f-1a2b3c4d5e6f",
	}
	for _, tc := range cases {
		assert.True(t, safeStringRe.MatchString(tc), "expected valid: %s", tc)
	}
}

func TestSafeID_Invalid(t *testing.T) {
	cases := []string{
		"req 001",  // space
		"req<001>", // angle brackets
		"req;DROP", // semicolon
		"",         // empty
		"req\n001", // newline
	}
	for _, tc := range cases {
		assert.False(t, safeStringRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestBankCode(t *testing.T) {
	for _, tc := range []string{"BCA", "bni", "014", "MANDIRI"} {
		assert.True(t, bankCodeRe.MatchString(tc), "expected valid: %s", tc)
	}
	for _, tc := range []string{"", "B", "BANK-CODE", "VERYLONGBANKCODE"} {
		assert.False(t, bankCodeRe.MatchString(tc), "expected invalid: %s", tc)
	}
}

func TestBinding_PayoutRequest(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&PayoutRequest{Amount: 100000, RequestID: "req-1"}))
	assert.Error(t, binding.Validator.ValidateStruct(&PayoutRequest{Amount: 100000}))
	assert.Error(t, binding.Validator.ValidateStruct(&PayoutRequest{Amount: 100000, RequestID: "req 1"}))
}

func TestBinding_BankAccountRequest(t *testing.T) {
	valid := BankAccountRequest{BankCode: "bca", AccountNumber: "1234567890", AccountHolder: "Budi"}
	assert.NoError(t, binding.Validator.ValidateStruct(&valid))

	invalid := valid
	invalid.AccountNumber = "12ab"
	assert.Error(t, binding.Validator.ValidateStruct(&invalid))
}

func TestBinding_CheckoutRequestIDOptional(t *testing.T) {
	assert.NoError(t, binding.Validator.ValidateStruct(&CheckoutRequest{}))
	assert.Error(t, binding.Validator.ValidateStruct(&CheckoutRequest{RequestID: "<x>"}))
}
