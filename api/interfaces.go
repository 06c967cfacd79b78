package api

import "github.com/openshelf/shelf-sync-node/engine"

// SyncEngine is the narrow engine surface the API serves. Defined here so
// the server is testable against a fake.
type SyncEngine interface {
	Status() engine.Status
	SyncNow()
}
