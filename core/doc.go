// Package core contains the carbon-credit ledger domain: the credit registry,
// the marketplace that settles purchases against it, the store contracts both
// run on, and the event outbox that carries their notifications. Storage and
// transport adapters depend on this package; core depends on neither.
package core
