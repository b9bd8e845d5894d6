package util

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"unicode"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"
)

const maxBinaryCheckBytes = 512

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// Typographic characters that commonly survive PDF and word-processor
// exports, normalized to plain ASCII equivalents.
var charReplacementMap = map[string]string{
	"‘": "'", "’": "'", "“": "\"", "”": "\"",
	"–": "-", "—": "--", "…": "...", " ": " ",
	"": "'", "": "'", "": "\"", "": "\"",
	"": "-", "": "--",
}

// IsLikelyBinary sniffs the first block of a file for NUL bytes.
func IsLikelyBinary(path string) (bool, error) {
	file, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer file.Close()

	buffer := make([]byte, maxBinaryCheckBytes)
	n, err := file.Read(buffer)
	if err != nil && !errors.Is(err, io.EOF) {
		return false, err
	}
	return bytes.Contains(buffer[:n], []byte{0}), nil
}

// CleanText normalizes extracted document text before chunking: strips
// a UTF-8 BOM, repairs invalid UTF-8, replaces typographic characters,
// and drops control characters that extraction tends to leave behind.
// src only labels log output.
func CleanText(raw []byte, src string) (string, error) {
	raw = bytes.TrimPrefix(raw, utf8BOM)

	if !utf8.Valid(raw) {
		log.WithField("source", src).Warn("invalid UTF-8 in extracted text, replacing invalid sequences")
		raw = bytes.ToValidUTF8(raw, []byte(string(utf8.RuneError)))
	}

	str := string(raw)
	for bad, good := range charReplacementMap {
		str = strings.ReplaceAll(str, bad, good)
	}

	str = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' || r == '\r' {
			return r
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, str)

	if !utf8.ValidString(str) {
		return "", fmt.Errorf("invalid UTF-8 after cleaning: %s", src)
	}
	return str, nil
}
