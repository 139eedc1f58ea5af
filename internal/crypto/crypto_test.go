package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestSealOpen(t *testing.T) {
	key, err := DeriveKey("correct horse", PurposeJournal)
	if err != nil {
		t.Fatalf("DeriveKey() error = %v", err)
	}
	ct, err := Seal([]byte("secret clip"), key)
	if err != nil {
		t.Fatalf("Seal() error = %v", err)
	}
	if bytes.Contains(ct, []byte("secret clip")) {
		t.Fatal("ciphertext contains plaintext")
	}
	got, err := Open(ct, key)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if string(got) != "secret clip" {
		t.Fatalf("Open() = %q", got)
	}
}

func TestOpenWrongKey(t *testing.T) {
	k1, _ := DeriveKey("one", PurposeJournal)
	k2, _ := DeriveKey("two", PurposeJournal)
	ct, _ := Seal([]byte("x"), k1)
	if _, err := Open(ct, k2); !errors.Is(err, ErrDecrypt) {
		t.Fatalf("Open() with wrong key error = %v, want ErrDecrypt", err)
	}
	if _, err := Open([]byte{1, 2, 3}, k1); err == nil {
		t.Fatal("Open() on short input error = nil")
	}
}

func TestDeriveKeyPurpose(t *testing.T) {
	a, _ := DeriveKey("pw", PurposeJournal)
	b, _ := DeriveKey("pw", "other")
	if *a == *b {
		t.Fatal("keys for different purposes are equal")
	}
	c, _ := DeriveKey("pw", PurposeJournal)
	if *a != *c {
		t.Fatal("DeriveKey() is not deterministic")
	}
	if _, err := DeriveKey("", PurposeJournal); err == nil {
		t.Fatal("DeriveKey(\"\") error = nil")
	}
}
