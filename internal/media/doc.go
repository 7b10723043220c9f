// package media prepares fetched audio for publishing.
//
// [ArtworkCache] downloads album art once per URL and shrinks it to a thumbnail.
// [Tagger] writes ID3 frames (title, performer, album, cover) into MP3 files.
package media
