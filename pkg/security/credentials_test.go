package security

import "testing"

func TestSealOpenRoundTrip(t *testing.T) {
	sealer, err := NewCredentialSealer("unit-test-passphrase")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}

	secret := "rzp_secret_0123456789"
	envelope, err := sealer.Seal(secret)
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if envelope == secret {
		t.Fatalf("envelope must not contain the plaintext")
	}

	got, err := sealer.Open(envelope)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got != secret {
		t.Fatalf("round trip mismatch: %q", got)
	}
}

func TestOpenRejectsTamperedEnvelope(t *testing.T) {
	sealer, err := NewCredentialSealer("unit-test-passphrase")
	if err != nil {
		t.Fatalf("new sealer: %v", err)
	}
	envelope, err := sealer.Seal("secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}

	tampered := "A" + envelope[1:]
	if _, err := sealer.Open(tampered); err == nil {
		t.Fatalf("expected tampered envelope to fail")
	}
}

func TestWrongKeyFailsToOpen(t *testing.T) {
	a, _ := NewCredentialSealer("key-a")
	b, _ := NewCredentialSealer("key-b")
	envelope, err := a.Seal("secret")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if _, err := b.Open(envelope); err == nil {
		t.Fatalf("expected wrong key to fail")
	}
}

func TestEmptyPassphraseRejected(t *testing.T) {
	if _, err := NewCredentialSealer(""); err == nil {
		t.Fatalf("expected error for empty passphrase")
	}
}
