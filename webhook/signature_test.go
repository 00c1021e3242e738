package webhook

import (
	"testing"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func TestSignVerify(t *testing.T) {
	body := []byte(`{"event":"accepted","jobId":"job-1"}`)
	sig := Sign(testSecret, body)
	if !Verify(testSecret, body, sig) {
		t.Fatal("valid signature did not verify")
	}
}

func TestVerify_BodyMutation(t *testing.T) {
	body := []byte(`{"event":"accepted","jobId":"job-1"}`)
	sig := Sign(testSecret, body)

	for i := range body {
		mutated := append([]byte(nil), body...)
		mutated[i] ^= 0x01
		if Verify(testSecret, mutated, sig) {
			t.Fatalf("signature verified after flipping a bit at offset %d", i)
		}
	}
}

func TestVerify_SignatureMutation(t *testing.T) {
	body := []byte(`payload`)
	sig := Sign(testSecret, body)

	// flip one hex nibble
	mutated := []byte(sig)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}
	if Verify(testSecret, body, string(mutated)) {
		t.Fatal("mutated signature verified")
	}

	if Verify(testSecret, body, "not-hex-at-all") {
		t.Fatal("non-hex signature verified")
	}
}

func TestVerify_WrongSecret(t *testing.T) {
	body := []byte(`payload`)
	sig := Sign(testSecret, body)
	if Verify("another-secret-16chars!!", body, sig) {
		t.Fatal("signature verified under a different secret")
	}
}

func TestValidateSecret(t *testing.T) {
	if err := ValidateSecret("short"); err == nil {
		t.Fatal("expected error for short secret")
	}
	if err := ValidateSecret(testSecret); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
