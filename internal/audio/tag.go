package audio

import "github.com/bogem/id3v2"

// StampMP3 writes ID3v2 tags onto a generated track so downstream players
// and the archive browser show proper metadata.
func StampMP3(path string, tags map[string]string) error {
	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	if err != nil {
		return err
	}
	defer tag.Close()

	tag.SetTitle(tags["TITLE"])
	tag.SetArtist(tags["ARTIST"])
	tag.SetAlbum(tags["ALBUM"])
	tag.SetGenre(tags["GENRE"])
	tag.SetYear(tags["DATE"])

	return tag.Save()
}
