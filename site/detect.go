package site

import (
	"archive/zip"
	"bytes"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/h2non/filetype"
	"github.com/h2non/filetype/matchers"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/encoding/unicode/utf32"
)

// srcEncoding identifies the Unicode flavor of a source file detected from
// its byte order mark.
type srcEncoding int

const (
	encUnknown srcEncoding = iota
	encUTF8
	encUTF16BigEndian
	encUTF16LittleEndian
	encUTF32BigEndian
	encUTF32LittleEndian
)

var teiType = filetype.NewType("tei", "application/tei+xml")

func init() {
	filetype.AddMatcher(teiType, func(buf []byte) bool {
		return looksLikeTEI(buf)
	})
}

// looksLikeTEI sniffs for a TEI root element in the head of the file. Both
// P5 ("<TEI xmlns=...") and P4 ("<TEI.2>") roots are accepted.
func looksLikeTEI(buf []byte) bool {
	i := bytes.Index(buf, []byte("<TEI"))
	if i < 0 {
		return false
	}
	rest := buf[i+len("<TEI"):]
	if len(rest) == 0 {
		return false
	}
	switch rest[0] {
	case ' ', '\t', '\r', '\n', '>', '.':
		return true
	}
	return false
}

func isUTF8BOM3(buf []byte) bool {
	return len(buf) >= 3 && buf[0] == 0xEF && buf[1] == 0xBB && buf[2] == 0xBF
}

func isUTF16BigEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFE && buf[1] == 0xFF
}

func isUTF16LittleEndianBOM2(buf []byte) bool {
	return len(buf) >= 2 && buf[0] == 0xFF && buf[1] == 0xFE
}

func isUTF32BigEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0x00 && buf[1] == 0x00 && buf[2] == 0xFE && buf[3] == 0xFF
}

func isUTF32LittleEndianBOM4(buf []byte) bool {
	return len(buf) >= 4 && buf[0] == 0xFF && buf[1] == 0xFE && buf[2] == 0x00 && buf[3] == 0x00
}

// detectUTF looks at the head of the buffer for a byte order mark. UTF-32 LE
// must be checked before UTF-16 LE, they share the FF FE prefix.
func detectUTF(buf []byte) srcEncoding {
	switch {
	case isUTF32BigEndianBOM4(buf):
		return encUTF32BigEndian
	case isUTF32LittleEndianBOM4(buf):
		return encUTF32LittleEndian
	case isUTF8BOM3(buf):
		return encUTF8
	case isUTF16BigEndianBOM2(buf):
		return encUTF16BigEndian
	case isUTF16LittleEndianBOM2(buf):
		return encUTF16LittleEndian
	}
	return encUnknown
}

// selectReader wraps r so that the consumer always sees clean UTF-8 without
// a byte order mark.
func selectReader(r io.Reader, enc srcEncoding) io.Reader {
	switch enc {
	case encUnknown:
		return r
	case encUTF8:
		return unicode.UTF8BOM.NewDecoder().Reader(r)
	case encUTF16BigEndian:
		return unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF16LittleEndian:
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder().Reader(r)
	case encUTF32BigEndian:
		return utf32.UTF32(utf32.BigEndian, utf32.UseBOM).NewDecoder().Reader(r)
	case encUTF32LittleEndian:
		return utf32.UTF32(utf32.LittleEndian, utf32.UseBOM).NewDecoder().Reader(r)
	}
	// this should never happen
	panic("unsupported source encoding")
}

// isArchiveFile returns true when path names a real zip archive. Extension
// alone is not trusted, the content magic has to match too.
func isArchiveFile(path string) (bool, error) {
	if !strings.EqualFold(filepath.Ext(path), ".zip") {
		return false, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer f.Close()

	buf := make([]byte, 262)
	n, err := io.ReadFull(f, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, err
	}
	return filetype.IsType(buf[:n], matchers.TypeZip), nil
}

// isEditionFile reports whether path looks like a TEI edition and which
// Unicode encoding its BOM announces.
func isEditionFile(path string) (bool, srcEncoding, error) {
	if !strings.EqualFold(filepath.Ext(path), ".xml") {
		return false, encUnknown, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return false, encUnknown, err
	}
	defer f.Close()

	return isEdition(f)
}

// isEditionInArchive is isEditionFile for a file inside a zip archive.
func isEditionInArchive(f *zip.File) (bool, srcEncoding, error) {
	if !strings.EqualFold(path.Ext(f.FileHeader.Name), ".xml") {
		return false, encUnknown, nil
	}

	r, err := f.Open()
	if err != nil {
		return false, encUnknown, err
	}
	defer r.Close()

	return isEdition(r)
}

func isEdition(r io.Reader) (bool, srcEncoding, error) {
	buf := make([]byte, 512)
	n, err := io.ReadFull(r, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return false, encUnknown, err
	}
	buf = buf[:n]

	enc := detectUTF(buf)
	head := buf
	switch enc {
	case encUTF8:
		head = buf[3:]
	case encUTF16BigEndian, encUTF16LittleEndian, encUTF32BigEndian, encUTF32LittleEndian:
		// Sniff after conversion, a partial trailing rune is fine here.
		head, _ = io.ReadAll(selectReader(bytes.NewReader(buf), enc))
	}
	return filetype.IsType(head, teiType), enc, nil
}
