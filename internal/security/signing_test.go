package security

import (
	"path/filepath"
	"testing"
)

func TestKeyPairRoundTrip(t *testing.T) {
	dir := t.TempDir()
	pubPath, privPath := filepath.Join(dir, "keys", "ledger.pub"), filepath.Join(dir, "keys", "ledger.priv")

	pub, priv, err := GenerateKeyPair()
	if err != nil {
		t.Fatal(err)
	}
	if err := SaveKeyPair(pub, priv, pubPath, privPath); err != nil {
		t.Fatalf("SaveKeyPair() error: %v", err)
	}

	lpub, lpriv, err := LoadKeyPair(pubPath, privPath)
	if err != nil {
		t.Fatalf("LoadKeyPair() error: %v", err)
	}

	sig := SignData(lpriv, []byte("block hash"))
	ok, err := VerifySignature(lpub, []byte("block hash"), sig)
	if err != nil || !ok {
		t.Errorf("VerifySignature() = %v, %v", ok, err)
	}
	if ok, _ := VerifySignature(lpub, []byte("other"), sig); ok {
		t.Error("signature valid for other data")
	}
}

func TestLoadKeyPairMismatch(t *testing.T) {
	dir := t.TempDir()
	pub1, priv1, _ := GenerateKeyPair()
	pub2, _, _ := GenerateKeyPair()
	_ = SaveKeyPair(pub1, priv1, filepath.Join(dir, "a.pub"), filepath.Join(dir, "a.priv"))
	_ = SaveKeyPair(pub2, priv1, filepath.Join(dir, "b.pub"), filepath.Join(dir, "b.priv"))

	if _, _, err := LoadKeyPair(filepath.Join(dir, "b.pub"), filepath.Join(dir, "a.priv")); err == nil {
		t.Error("mismatched key pair accepted")
	}
}
