// Package shoutcast reads ICY/Shoutcast streams.
//
// A Stream strips the interleaved metadata blocks so Read only returns audio
// bytes, and exposes the metadata either through a callback or one cycle at a
// time with NextMetadata. Playlist URLs (.pls, .m3u, .m3u8) are resolved to
// the stream they reference before connecting.
package shoutcast
