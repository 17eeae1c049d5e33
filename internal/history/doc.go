// Package history records completed relocations in SQLite so operators can see
// where files went after the fact.
//
// The store is optional and disabled by default. It is written only after a
// successful move and never influences whether a file is moved. Schema changes
// bump schemaVersion in schema.go; an older database must be deleted to adopt
// the new schema.
package history
