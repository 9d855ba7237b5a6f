package validator

import "testing"

type provisionRequest struct {
	Slug  string `validate:"required,slug"`
	Email string `validate:"omitempty,email"`
}

func TestSlugRule(t *testing.T) {
	val := New()

	if err := val.Struct(provisionRequest{Slug: "acme-roofing"}); err != nil {
		t.Fatalf("expected valid slug, got %v", err)
	}
	for _, bad := range []string{"Acme", "acme_roofing", "-acme", "acme-", ""} {
		if err := val.Struct(provisionRequest{Slug: bad}); err == nil {
			t.Fatalf("expected %q to be rejected", bad)
		}
	}
}

func TestVarEmail(t *testing.T) {
	val := New()
	if err := val.Var("jane@x.com", "required,email"); err != nil {
		t.Fatalf("expected valid email, got %v", err)
	}
	if err := val.Var("jane", "required,email"); err == nil {
		t.Fatal("expected invalid email to fail")
	}
}
