// Package index maps test identities to record offsets and holds the file level tables of an
// STDF file: the DUT axis, pin names, bins, wafers and per-DUT limit overrides.
//
// Source is the query interface consumed by a session. MemIndex implements it and is produced by
// Build, which scans a stream once. Store persists a MemIndex in badger so that reopening an
// unchanged file skips the scan.
package index
