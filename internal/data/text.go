package data

import (
	"fmt"
	"strings"

	"github.com/l1jgo/resman/internal/resman"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/encoding/traditionalchinese"
)

// Text is a text file decoded to UTF-8.
type Text struct {
	Path    string
	Charset string
	Body    string
}

// Lines splits the body on newlines, dropping a trailing empty line.
func (t *Text) Lines() []string {
	body := strings.ReplaceAll(t.Body, "\r\n", "\n")
	body = strings.TrimSuffix(body, "\n")
	if body == "" {
		return nil
	}
	return strings.Split(body, "\n")
}

// TextFactory reads path under root and decodes it from charset. MS950
// (the legacy client charset) is decoded as Big5; other names are looked
// up as WHATWG encoding labels.
func TextFactory(root, charset string) (resman.Factory, error) {
	enc, err := lookupCharset(charset)
	if err != nil {
		return nil, err
	}
	name := strings.ToLower(charset)
	if name == "" {
		name = "utf-8"
	}
	return func(path string) (resman.Resource, error) {
		raw, err := ReadFile(root, path)
		if err != nil {
			return nil, err
		}
		body, err := decode(enc, raw)
		if err != nil {
			return nil, fmt.Errorf("decode %s as %s: %w", path, name, err)
		}
		return &Text{Path: path, Charset: name, Body: body}, nil
	}, nil
}

// lookupCharset returns nil for UTF-8, which needs no decoding.
func lookupCharset(charset string) (encoding.Encoding, error) {
	switch strings.ToLower(charset) {
	case "", "utf-8", "utf8":
		return nil, nil
	case "ms950", "cp950", "big5":
		return traditionalchinese.Big5, nil
	}
	enc, err := htmlindex.Get(charset)
	if err != nil {
		return nil, fmt.Errorf("unknown charset %q: %w", charset, err)
	}
	return enc, nil
}

func decode(enc encoding.Encoding, raw []byte) (string, error) {
	if enc == nil || isASCII(raw) {
		return string(raw), nil
	}
	decoded, err := enc.NewDecoder().Bytes(raw)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

func isASCII(raw []byte) bool {
	for _, b := range raw {
		if b >= 0x80 {
			return false
		}
	}
	return true
}
