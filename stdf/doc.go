// Package stdf decodes Standard Test Data Format (STDF V4) records, the binary format written by
// semiconductor automatic test equipment.
//
// Every STDF record starts with a 4-byte header: REC_LEN (U2, body length), REC_TYP (U1) and
// REC_SUB (U1). The body is a sequence of typed fields; trailing optional fields may be omitted, so a
// decoded record reports how many fields were physically present. Multi-byte fields follow the byte
// order of the writing CPU, announced by the FAR record at the start of the file. The byte order is
// never global state in this package: it is an explicit Endianness value passed to every decode call.
//
// The package offers three levels of access:
//   - DecodeRecord decodes one record body into a typed value (*PTR, *FTR, *MPR, *PIR, ...).
//   - Scanner walks a stream sequentially and is used by the index builder.
//   - DecodeTest gathers the per-DUT results of one test from known record offsets, which is how
//     a session reads only the requested slice of a large file.
//
// Writer encodes records and is used to produce synthetic files for tests and tooling.
package stdf
