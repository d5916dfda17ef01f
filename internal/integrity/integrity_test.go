package integrity

import (
	"errors"
	"testing"
)

func TestEnsureCompliance_FirstSeenIsMissingBaseline(t *testing.T) {
	v := NewVerifier()

	_, err := v.EnsureCompliance("demo", "source-v1")
	if !errors.Is(err, ErrMissingBaseline) {
		t.Fatalf("error = %v, want ErrMissingBaseline", err)
	}
}

func TestEnsureCompliance_VerifiedAfterBaseline(t *testing.T) {
	v := NewVerifier()
	v.RecordBaseline("demo", "source-v1")

	status, err := v.EnsureCompliance("demo", "source-v1")
	if err != nil {
		t.Fatalf("EnsureCompliance() error = %v", err)
	}
	if status != StatusVerified {
		t.Errorf("status = %q, want verified", status)
	}
}

func TestEnsureCompliance_ViolationOnChangedSource(t *testing.T) {
	v := NewVerifier()
	v.RecordBaseline("demo", "source-v1")

	_, err := v.EnsureCompliance("demo", "source-v2-tampered")
	if !errors.Is(err, ErrViolation) {
		t.Fatalf("error = %v, want ErrViolation", err)
	}
}

func TestForget_ResetsToMissingBaseline(t *testing.T) {
	v := NewVerifier()
	v.RecordBaseline("demo", "source-v1")
	v.Forget("demo")

	_, err := v.EnsureCompliance("demo", "source-v1")
	if !errors.Is(err, ErrMissingBaseline) {
		t.Fatalf("error = %v, want ErrMissingBaseline after Forget", err)
	}
}

func TestHasher_Deterministic(t *testing.T) {
	var h Hasher
	a := h.HashText("hello")
	b := h.HashText("hello")
	if a != b {
		t.Errorf("hash not deterministic: %q != %q", a, b)
	}
	if h.HashText("hello") == h.HashText("world") {
		t.Error("different inputs produced the same hash")
	}
}
