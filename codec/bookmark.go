package codec

import "io"

// WriteSeeker is the file surface the metadata codecs need: sequential
// writes plus seeking for back-patching reserved slots.
type WriteSeeker interface {
	io.Writer
	io.Seeker
}

// Bookmark runs fn with the file positioned at pos and restores the
// original position on every exit path, so back-patching never disturbs
// the append cursor.
func Bookmark(f WriteSeeker, pos int64, fn func() error) (err error) {
	cur, err := f.Seek(0, io.SeekCurrent)
	if err != nil {
		return err
	}
	if _, err = f.Seek(pos, io.SeekStart); err != nil {
		return err
	}
	defer func() {
		if _, serr := f.Seek(cur, io.SeekStart); serr != nil && err == nil {
			err = serr
		}
	}()
	return fn()
}
