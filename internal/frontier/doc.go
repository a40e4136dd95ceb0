// Package frontier implements the crawl frontier and its checkpoints.
//
// # Frontier
//
// Store keeps the pending, in-flight and explored target sets of a single
// domain behind one mutex. The scheduler takes targets, retires them with
// MarkExplored, or gives them back with Restore when a fetch failed in a way
// that may succeed later. Links discovered on a page are fed in with Add,
// which ignores anything already known.
//
// # Checkpoints
//
// A Checkpoint is the (pending, explored) pair persisted per domain.
// In-flight targets are written as pending. FileCheckpointer stores one JSON
// file per domain:
//
//	{"urls": ["https://example.test/b"], "explored": ["https://example.test/"]}
//
// The database package provides a SQLite implementation of the same
// Checkpointer interface.
//
// # Usage
//
//	cp := frontier.NewFileCheckpointer(dir)
//	store, resumed, err := frontier.Load(ctx, cp, "https://example.test/")
//	...
//	defer store.Persist(context.WithoutCancel(ctx), cp)
package frontier
