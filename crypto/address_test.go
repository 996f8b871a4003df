package crypto

import "testing"

func TestAddressRoundTrip(t *testing.T) {
	raw := make([]byte, AddressLength)
	raw[0] = 0xab
	raw[19] = 0x01
	addr := NewAddress(AccountPrefix, raw)

	encoded := addr.String()
	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode address: %v", err)
	}
	if !decoded.Equal(addr) {
		t.Fatalf("round trip mismatch: %s != %s", decoded, addr)
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("unexpected prefix: %s", decoded.Prefix())
	}
}

func TestAddressIsZero(t *testing.T) {
	if !(Address{}).IsZero() {
		t.Fatalf("zero value should report zero")
	}
	if !NewAddress(AssetPrefix, make([]byte, AddressLength)).IsZero() {
		t.Fatalf("all-zero payload should report zero")
	}
	raw := make([]byte, AddressLength)
	raw[7] = 1
	if NewAddress(AssetPrefix, raw).IsZero() {
		t.Fatalf("non-zero payload reported zero")
	}
}

func TestDecodeAddressRejectsGarbage(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatalf("expected decode failure")
	}
}
