package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	key, err := GeneratePrivateKey()
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	addr := key.PubKey().Address()

	decoded, err := DecodeAddress(addr.String())
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
	if decoded.Prefix() != BankPrefix {
		t.Fatalf("unexpected prefix %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestAddressIsZero(t *testing.T) {
	var empty Address
	if !empty.IsZero() {
		t.Fatal("empty address should be zero")
	}
	addr := NewAddress(BankPrefix, make([]byte, 20))
	if !addr.IsZero() {
		t.Fatal("all-zero address should be zero")
	}
}
