// Package stream provides a uniform seek/read/close abstraction over STDF files that may be
// stored plain, gzip compressed, bzip2 compressed, or wrapped in a zip archive.
//
// Plain files and stored (uncompressed) zip entries are read in place. Compressed inputs are
// decompressed once at open time into a block spool: the decompressed content is cut into fixed
// size blocks, each block is re-compressed independently with zstd into a temporary file, and a
// block index maps decompressed offsets to spool offsets. A Seek is a binary search over the
// block index and a Read decompresses only the blocks it touches, so random access does not
// depend on the file size and memory use stays bounded by the decoded-block cache.
//
// The compression kind is selected by file suffix (case-insensitive):
//   - ".gz":  gzip, multi-member files are supported.
//   - ".bz2": bzip2.
//   - ".zip": the first entry of the archive, which must be a non-empty file.
//   - anything else: plain file.
//
// A Stream is not safe for concurrent use; the stream position is shared state and callers must
// serialise access (session.Session holds one mutex per open stream).
package stream
