package application

import "testing"

func TestValidationError_Error(t *testing.T) {
	t.Parallel()

	var err *ValidationError
	if err.Error() != "" {
		t.Fatalf("expected empty string for nil error, got %q", err.Error())
	}

	empty := &ValidationError{}
	if got := empty.Error(); got != "validation failed" {
		t.Fatalf("expected generic message for empty error, got %q", got)
	}

	withFields := &ValidationError{FieldErrors: map[string]string{"to": "bad", "from": "bad"}}
	if got := withFields.Error(); got != "validation failed: from, to" {
		t.Fatalf("expected sorted field names in message, got %q", got)
	}
}

func TestValidationError_HasErrors(t *testing.T) {
	t.Parallel()

	if err := (&ValidationError{}).HasErrors(); err {
		t.Fatalf("expected HasErrors to report false for empty error")
	}

	base := &ValidationError{}
	base.add("slot", "not proposed")
	if !base.HasErrors() || base.FieldErrors["slot"] != "not proposed" {
		t.Fatalf("expected add to record the field, got %v", base.FieldErrors)
	}
}
