// Package storage persists extracted cases and the raw pages they came from.
//
// A Store holds one StructuredCase per case code and only ever replaces
// whole records:
//   - FileStore writes <code>.json files with a temporary file and an atomic rename
//   - SQLiteStore keeps every record of a county in a single table
//   - CachedStore memoizes loads in front of either of them
//
// Archive keeps fetched case HTML under "<MM-DD-YYYY> <id>.html", the
// naming the offline extract command reads back.
//
// Usage:
//
//	store, err := storage.Open(cfg.Storage, "hays")
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//
//	existing, ok, err := store.Load(ctx, "CR-16-0002-A")
package storage
