package signers

import (
	"context"

	escrowconnect "github.com/stellar-connect/escrow-go"
)

// callbackSigner wraps a custom signing function for external signing services.
type callbackSigner struct {
	publicKey string
	signFunc  func(ctx context.Context, xdr string, networkPassphrase string) (string, error)
}

// FromCallback creates a Signer from a public key and an arbitrary signing
// function. Intended for wrapping HSMs, custodial APIs, or any external
// signing service — for example the independent master key of a recipient's
// pre-existing main account, which must co-authorize the trustline opened
// during a claim.
func FromCallback(
	publicKey string,
	signFunc func(ctx context.Context, xdr string, networkPassphrase string) (string, error),
) escrowconnect.Signer {
	return &callbackSigner{
		publicKey: publicKey,
		signFunc:  signFunc,
	}
}

// PublicKey returns the Stellar address (G...) for this signer.
func (s *callbackSigner) PublicKey() string {
	return s.publicKey
}

// SignTransaction signs a Stellar transaction envelope (base64 XDR) by
// delegating to the callback function. Returns the signed envelope as base64 XDR.
func (s *callbackSigner) SignTransaction(ctx context.Context, xdr string, networkPassphrase string) (string, error) {
	return s.signFunc(ctx, xdr, networkPassphrase)
}
