// Package models defines the core domain models for tabscan.
//
// # Models
//
//   - Transaction: a published bill anchored to a shareable id
//   - Item: a claimable line item on a transaction
//   - DraftBill / DraftItem: the organizer-facing bill shape before publish,
//     matching what the OCR extraction step produces
//   - ClaimResult: outcome of a claim batch (claimed vs rejected item ids)
//
// Participants are identified by nickname strings only; there are no user
// accounts. Nicknames are compared case-insensitively, so the normalized
// form produced by NormalizeNickname is the single canonical identity used
// for ownership and allocation.
//
// # Design principles
//
// 1. State lives in the store: models carry no claim bookkeeping of their own
// 2. Money fields are fixed-point decimals with two fractional digits
// 3. Relationships use ID strings instead of pointers, avoiding cycles
package models
