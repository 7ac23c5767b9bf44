package tallyxml

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/beevik/etree"
	"golang.org/x/text/encoding/unicode"
)

// Unpack reads the first member of a zipped Tally export, decodes it,
// sanitizes it and parses it into a tree.
func Unpack(archive []byte) (*Node, error) {
	text, err := unzipFirst(archive)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

func unzipFirst(archive []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(archive), int64(len(archive)))
	if err != nil {
		return "", unreadable("open zip", fmt.Errorf("%w: %v", ErrNotZip, err))
	}
	if len(zr.File) == 0 {
		return "", unreadable("open zip", ErrEmptyArchive)
	}

	member := zr.File[0]
	rc, err := member.Open()
	if err != nil {
		return "", unreadable("open "+member.Name, err)
	}
	defer rc.Close()

	raw, err := io.ReadAll(rc)
	if err != nil {
		return "", unreadable("read "+member.Name, err)
	}

	text, err := Decode(raw)
	if err != nil {
		return "", unreadable("decode "+member.Name, err)
	}
	return text, nil
}

// Decode converts raw export bytes to text. UTF-16 is chosen when a UTF-16
// byte order mark is present or the bytes are not clean UTF-8; otherwise the
// bytes are UTF-8 with an optional BOM. Decoding must be lossless.
func Decode(raw []byte) (string, error) {
	if !hasUTF16BOM(raw) && utf8.Valid(raw) && bytes.IndexByte(raw, 0) < 0 {
		return strings.TrimPrefix(string(raw), "\uFEFF"), nil
	}

	if len(raw)%2 != 0 {
		return "", fmt.Errorf("%w: odd length %d for utf-16", ErrUndecodable, len(raw))
	}

	decoder := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewDecoder()
	out, err := decoder.Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if bytes.ContainsRune(out, utf8.RuneError) {
		return "", fmt.Errorf("%w: utf-16 decode produced replacement characters", ErrUndecodable)
	}
	return string(out), nil
}

func hasUTF16BOM(raw []byte) bool {
	return len(raw) >= 2 && ((raw[0] == 0xFF && raw[1] == 0xFE) || (raw[0] == 0xFE && raw[1] == 0xFF))
}

// Parse sanitizes decoded export text and parses it permissively
func Parse(text string) (*Node, error) {
	return parse(Sanitize(text))
}

// ParseReport parses a report export such as a trial balance. Empty
// elements are kept so report columns stay aligned.
func ParseReport(text string) (*Node, error) {
	return parse(SanitizeChars(text))
}

func parse(text string) (*Node, error) {
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	if err := doc.ReadFromString(text); err != nil {
		return nil, unreadable("parse", fmt.Errorf("%w: %v", ErrMalformedXML, err))
	}

	root := doc.Root()
	if root == nil {
		return nil, unreadable("parse", ErrNoRootElement)
	}
	return &Node{el: root}, nil
}

// Load accepts either a zipped export or the bare document
func Load(data []byte) (*Node, error) {
	text, err := readText(data)
	if err != nil {
		return nil, err
	}
	return Parse(text)
}

// LoadReport is Load for report exports
func LoadReport(data []byte) (*Node, error) {
	text, err := readText(data)
	if err != nil {
		return nil, err
	}
	return ParseReport(text)
}

func readText(data []byte) (string, error) {
	if bytes.HasPrefix(data, []byte("PK\x03\x04")) || bytes.HasPrefix(data, []byte("PK\x05\x06")) {
		return unzipFirst(data)
	}
	text, err := Decode(data)
	if err != nil {
		return "", unreadable("decode", err)
	}
	return text, nil
}
