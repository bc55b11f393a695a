// Package governance holds the SK term lifecycle rules and the position-capacity
// accounting used for vacancy reporting.
//
// Everything here is a synchronous function over values supplied by the caller. Nothing
// is cached between calls and inputs are never mutated; transitions return a modified
// copy of the term for the caller to persist. Enforcing "at most one active term"
// against concurrent writers belongs to the persistence layer.
package governance
