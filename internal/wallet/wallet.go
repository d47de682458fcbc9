// Package wallet holds the operator keypair and signs locally built
// transactions.
package wallet

import (
	"crypto/ed25519"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"
)

// Wallet is the operator's ed25519 keypair.
type Wallet struct {
	priv    ed25519.PrivateKey
	address string // base58 public key
}

// NewFromBase58 builds a Wallet from a base58-encoded 64-byte secret key
// (seed followed by public key, the standard Solana export format). The
// embedded public key is checked against the seed-derived key and validated
// as a canonical curve point.
func NewFromBase58(secret string) (*Wallet, error) {
	raw, err := base58.Decode(secret)
	if err != nil {
		return nil, fmt.Errorf("decode secret key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("secret key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}

	priv := ed25519.PrivateKey(raw)
	derived := priv.Public().(ed25519.PublicKey)

	embedded := raw[ed25519.SeedSize:]
	if !derived.Equal(ed25519.PublicKey(embedded)) {
		return nil, fmt.Errorf("secret key public half does not match seed")
	}
	if _, err := new(edwards25519.Point).SetBytes(embedded); err != nil {
		return nil, fmt.Errorf("public key is not a valid curve point: %w", err)
	}

	return &Wallet{
		priv:    priv,
		address: base58.Encode(derived),
	}, nil
}

// Address returns the base58 public key.
func (w *Wallet) Address() string {
	return w.address
}

// Sign signs an arbitrary message with the wallet key.
func (w *Wallet) Sign(message []byte) []byte {
	return ed25519.Sign(w.priv, message)
}

// SignTransaction signs a serialized versioned transaction in place. The
// wire format is a compact-u16 signature count, the signature array, then
// the message bytes. The wallet is assumed to be the fee payer, whose
// signature occupies slot zero.
func (w *Wallet) SignTransaction(tx []byte) ([]byte, error) {
	count, offset, err := decodeCompactU16(tx)
	if err != nil {
		return nil, fmt.Errorf("parse signature count: %w", err)
	}
	if count < 1 {
		return nil, fmt.Errorf("transaction requires no signatures")
	}

	sigBytes := count * ed25519.SignatureSize
	if len(tx) < offset+sigBytes {
		return nil, fmt.Errorf("transaction truncated: %d bytes, need %d signatures", len(tx), count)
	}

	message := tx[offset+sigBytes:]
	sig := ed25519.Sign(w.priv, message)

	signed := make([]byte, len(tx))
	copy(signed, tx)
	copy(signed[offset:], sig)
	return signed, nil
}

// decodeCompactU16 decodes the Solana compact-u16 encoding at the start of
// buf, returning the value and the number of bytes consumed.
func decodeCompactU16(buf []byte) (value, consumed int, err error) {
	for i := 0; i < 3; i++ {
		if i >= len(buf) {
			return 0, 0, fmt.Errorf("unexpected end of input")
		}
		b := int(buf[i])
		value |= (b & 0x7f) << (7 * i)
		if b&0x80 == 0 {
			return value, i + 1, nil
		}
	}
	return 0, 0, fmt.Errorf("compact-u16 too long")
}
