// Package gallerylog implements the durable download log that doubles
// as the crawl's checkpoint.
//
// The log is a plain text file of stanzas, newest first, each stanza
// being an id line, a timestamp line, and the prompt text:
//
//	========================================
//	#000000042
//	Aug 12, 2026 3:14 PM
//	A castle on a cliff overlooking a stormy sea
//
// The timestamp line keeps whatever text the gallery rendered. Text
// matching no known layout still loads; the record just sorts after
// every dated one.
//
// The reserved id 999999999 marks a download that finished without the
// completion check confirming it. Such records stay in the file but are
// excluded from duplicate comparison until `gallerydl log renumber`
// finalizes them.
//
// Every append rewrites the whole file through a temp file, fsync and
// rename, so a crash leaves either the old log or the new one, never a
// torn file. An existing file that cannot be parsed at all switches the
// log into append-only mode for the rest of the session instead of
// blocking the crawl.
package gallerylog
