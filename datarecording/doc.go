// Package datarecording stores simulation records in SQLite databases.
// Components insert plain structs; the recorder batches them and writes one
// table per record type.
package datarecording
