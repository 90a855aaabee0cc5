// Package store provides the DynamoDB data access layer for the picstream engine.
//
// The table store is the only system of record. Every cross-item invariant in
// picstream (email uniqueness, credential/claim pairing) is enforced through
// DynamoDB conditional writes and atomic multi-item transactions; the package
// exposes just enough surface for the managers to compose those transactions:
//
//   - [Client.Get], [Client.Query], [Client.QueryOne] for reads
//   - [Client.Put], [Client.PutConditional], [Client.DeleteConditional] for
//     single-item writes
//   - [Client.Transact] for all-or-nothing multi-item writes
//   - [PutOp] and [DeleteOp] for building unexecuted transaction items
//
// # Errors
//
// The package defines sentinel errors:
//
//   - [ErrNotFound] - item doesn't exist
//   - [ErrConditionFailed] - a conditional write or transaction precondition failed
//   - [ErrAmbiguous] - a single-item lookup matched more than one item
//
// Transaction failures caused by a precondition surface as [TxConditionError],
// which matches [ErrConditionFailed] under errors.Is and reports the index of
// the losing item so callers can produce a precise error message. Any other
// failure is transport-level and is returned as-is.
package store
