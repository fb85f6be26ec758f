package ast

import "github.com/djls-go/djls/internal/source"

// splitBits tokenizes s (the inner content of a `{% ... %}` tag, or one
// segment of a filter chain) into shell-style whitespace-separated bits,
// treating `'...'` and `"..."` as single bits that may contain whitespace.
// offset is s's start position in the original source, so returned spans
// are absolute. ok is false when a quote was never closed; in that case the
// final bit runs to the end of s so callers can still make best-effort
// progress.
func splitBits(s string, offset uint32) (bits []Bit, ok bool) {
	ok = true
	i := 0
	for i < len(s) {
		for i < len(s) && isBitSpace(s[i]) {
			i++
		}
		if i >= len(s) {
			break
		}
		start := i
		if s[i] == '\'' || s[i] == '"' {
			quote := s[i]
			i++
			closed := false
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					i += 2
					continue
				}
				if s[i] == quote {
					i++
					closed = true
					break
				}
				i++
			}
			if !closed {
				ok = false
			}
		} else {
			for i < len(s) && !isBitSpace(s[i]) {
				i++
			}
		}
		bits = append(bits, Bit{
			Raw:  s[start:i],
			Span: source.Span{Start: offset + uint32(start), Length: uint32(i - start)},
		})
	}
	return bits, ok
}

func isBitSpace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

// splitTopLevel splits s on every unquoted occurrence of sep, returning the
// byte offset of each piece relative to offset. Used to separate a
// variable's primary expression from its `|`-delimited filter chain.
func splitTopLevel(s string, offset uint32, sep byte) []Bit {
	var parts []Bit
	start := 0
	i := 0
	for i < len(s) {
		switch s[i] {
		case '\'', '"':
			quote := s[i]
			i++
			for i < len(s) {
				if s[i] == '\\' && i+1 < len(s) {
					i += 2
					continue
				}
				if s[i] == quote {
					i++
					break
				}
				i++
			}
		case sep:
			parts = append(parts, Bit{
				Raw:  s[start:i],
				Span: source.Span{Start: offset + uint32(start), Length: uint32(i - start)},
			})
			i++
			start = i
			continue
		default:
			i++
		}
	}
	parts = append(parts, Bit{
		Raw:  s[start:i],
		Span: source.Span{Start: offset + uint32(start), Length: uint32(i - start)},
	})
	return parts
}

func trimBit(b Bit) Bit {
	raw := b.Raw
	lead := 0
	for lead < len(raw) && isBitSpace(raw[lead]) {
		lead++
	}
	trail := len(raw)
	for trail > lead && isBitSpace(raw[trail-1]) {
		trail--
	}
	return Bit{
		Raw:  raw[lead:trail],
		Span: source.Span{Start: b.Span.Start + uint32(lead), Length: uint32(trail - lead)},
	}
}

func isQuoted(s string) bool {
	return len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0]
}

func unquote(s string) string {
	if isQuoted(s) {
		return s[1 : len(s)-1]
	}
	return s
}
