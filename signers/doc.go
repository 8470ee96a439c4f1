// Package signers provides convenience constructors for creating Signer implementations.
//
// It offers three patterns:
//   - FromSecret: Wraps a Stellar secret key (S...) using stellar/go keypair for signing.
//     Intended for server-side use (anchors, wallets, bots).
//   - Generate: Creates a fresh random keypair, used for transient escrow identities.
//   - FromCallback: Wraps a custom signing function (e.g., HSM, custodial API, external service).
//     Allows you to delegate signing to any external infrastructure.
//
// All return implementations of the escrowconnect.Signer interface.
package signers
