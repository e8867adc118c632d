// Package core contains the canonical bounty domain contracts, entities, and
// orchestration logic. Lower-level adapters must depend on this package; core
// must not depend on storage-specific or transport-specific adapters.
package core
