// Package services implements the record store API used by the app shell
// (BudgetService, ItemService) and the sync coordinator (SyncService).
//
// Every mutation sets updated_at to the current time and marks the record
// dirty; deletions are soft and keep the row as a tombstone until the remote
// has acknowledged it. Multi-statement mutations run in one transaction.
package services
