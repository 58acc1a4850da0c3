// Package linecache provides a line-buffering cache that converts one
// narrow peripheral request stream into burst-aligned transactions against
// a burst backend.
//
// The cache owns depth direct-mapped line slots. A request that hits a
// resident line is served from the buffer. A miss first writes back the old
// line when it is dirty, then fills the new line with one burst read, then
// serves the original request. During a fill or a flush the cache is busy
// and the requesting master stalls; this is the only backpressure
// mechanism, there is no request queue.
//
// A cache built in write-combining mode never reads: narrow writes
// accumulate into the single resident line and a full line is written back
// with one autonomous burst. This is the mode the download loader uses.
package linecache
