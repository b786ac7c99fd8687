// Package llm defines the minimal completion interface the intent parser
// depends on. Provider-specific adapters live in subpackages and normalize
// request/response lifecycles behind it.
package llm
