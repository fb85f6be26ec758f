package lspserver

import (
	"unicode/utf16"
	"unicode/utf8"

	"github.com/djls-go/djls/internal/source"
)

// Encoding is the position encoding negotiated with the client during
// initialize (spec.md §6 "Position encoding is negotiated"). LSP clients
// default to UTF-16 code units; a client may advertise "utf-8" in
// general.positionEncodings, in which case djls can skip the UTF-16
// conversion entirely and use byte offsets within each line directly
// (templates are always decoded as UTF-8, so "utf-8" here means
// byte-offset-within-line, matching the LSP spec's PositionEncodingKind).
type Encoding string

const (
	EncodingUTF16 Encoding = "utf-16"
	EncodingUTF8  Encoding = "utf-8"
)

// negotiateEncoding picks "utf-8" only if the client explicitly lists it;
// otherwise falls back to the protocol default of "utf-16".
func negotiateEncoding(caps ClientCapabilities) Encoding {
	if caps.General == nil {
		return EncodingUTF16
	}
	for _, enc := range caps.General.PositionEncodings {
		if enc == string(EncodingUTF8) {
			return EncodingUTF8
		}
	}
	return EncodingUTF16
}

// offsetFromPosition converts an LSP Position into a byte offset into
// text, using idx to find the line's byte span and then walking that
// line's runes to translate the line-relative column.
func offsetFromPosition(text string, idx *source.LineIndex, pos Position, enc Encoding) uint32 {
	lineNo := pos.Line + 1 // source.LineIndex lines are 1-based
	if lineNo < 1 {
		lineNo = 1
	}
	if lineNo > idx.LineCount() {
		return uint32(len(text))
	}
	span := idx.LineSpan(lineNo, text)
	line := span.Slice(text)

	var byteCol int
	if enc == EncodingUTF8 {
		byteCol = clampInt(pos.Character, 0, len(line))
	} else {
		byteCol = utf16ColumnToByte(line, pos.Character)
	}
	return span.Start + uint32(byteCol)
}

// positionFromOffset is offsetFromPosition's inverse, used to report
// diagnostic ranges back to the client in its negotiated encoding.
func positionFromOffset(text string, idx *source.LineIndex, offset uint32, enc Encoding) Position {
	pos := idx.Position(offset)
	lineSpan := idx.LineSpan(pos.Line, text)
	line := lineSpan.Slice(text)
	byteCol := clampInt(pos.Column, 0, len(line))

	var character int
	if enc == EncodingUTF8 {
		character = byteCol
	} else {
		character = byteColumnToUTF16(line, byteCol)
	}
	return Position{Line: pos.Line - 1, Character: character}
}

func utf16ColumnToByte(line string, utf16Col int) int {
	if utf16Col <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if units >= utf16Col {
			return i
		}
		if r == utf8.RuneError {
			units++
			continue
		}
		units += len(utf16.Encode([]rune{r}))
	}
	return len(line)
}

func byteColumnToUTF16(line string, byteCol int) int {
	if byteCol <= 0 {
		return 0
	}
	units := 0
	for i, r := range line {
		if i >= byteCol {
			break
		}
		if r == utf8.RuneError {
			units++
			continue
		}
		units += len(utf16.Encode([]rune{r}))
	}
	return units
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
