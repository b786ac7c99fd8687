// Package intent contains the core pipeline that turns free-form natural
// language into a canonical cross-chain order. The parser grounds a language
// model on the token whitelist, the normalizer repairs and completes the
// model's untrusted output, and ambiguity is surfaced as a first-class result
// rather than an error.
package intent
