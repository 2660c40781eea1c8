// Package gosortable maintains an integer rank ("order") column on
// database-backed records.
//
// # Overview
//
// Records are kept in a total order per partition by a single numeric rank.
// The Engine moves, swaps and inserts records relative to each other and
// renumbers arbitrary key lists, always shifting the affected ranks by one
// step so that no two records of a partition end up sharing a rank.
//
// Key concepts
//   - Orderable: the capability interface a record type implements (key,
//     rank getter/setter). Flagged and Partitioned are optional extensions.
//   - Store: the record store collaborator. GormStore works on top of a
//     *gorm.DB, MemoryStore keeps records in process.
//   - Config: per collection settings (rank column, flags column, creation
//     policy, listing direction, static partition).
//   - Direction: the direction in which a collection is listed. The head of
//     the list is its first record in that direction. The default DESC
//     listing puts the highest rank first.
//   - PageToken: an opaque keyset position returned by Engine.ListPage to
//     continue a listing page by page.
//
// # Concurrency
//
// Every operation reads ranks and then writes them back without any
// compare-and-swap guard. Operations touching the same partition must not
// run concurrently unless Config.Transactional is set on a store with
// suitable isolation, a Locker is configured, or the caller serialises
// them otherwise.
package gosortable
