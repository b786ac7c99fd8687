// Package order encodes canonical orders into ERC-7683 typed data for wallet
// signing and verifies the resulting signatures against the claimed signer.
package order
