package imposter

import (
	"testing"
)

func TestGenerateSelfSignedCertIsUsableAsTLSConfig(t *testing.T) {
	cert, err := generateSelfSignedCert()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(cert.Certificate) == 0 {
		t.Fatalf("expected at least one certificate in the chain")
	}
}

func TestTLSConfigForGeneratesWhenNoCertProvided(t *testing.T) {
	cfg, err := tlsConfigFor("", "")
	if err != nil {
		t.Fatalf("tlsConfigFor: %v", err)
	}
	if len(cfg.Certificates) != 1 {
		t.Fatalf("got %d certificates, want 1", len(cfg.Certificates))
	}
}

func TestTLSConfigForRejectsMismatchedPair(t *testing.T) {
	_, err := tlsConfigFor("not a cert", "not a key")
	if err == nil {
		t.Fatalf("expected an error for an invalid cert/key pair")
	}
}

func TestRandomBytesReturnsRequestedLength(t *testing.T) {
	b := randomBytes(64)
	if len(b) != 64 {
		t.Fatalf("got %d bytes, want 64", len(b))
	}
}
