package extractor

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"strings"
)

// extractPDF is a best-effort pure Go text reader: it inflates Flate content
// streams and collects the strings fed to the Tj/TJ/' text-show operators.
// Layout is approximated (newline per text-positioning operator), which is
// enough for segmentation; this is not a full PDF renderer.
func extractPDF(data []byte) (string, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return "", fmt.Errorf("missing %%PDF header")
	}

	var sb strings.Builder
	for _, stream := range contentStreams(data) {
		text := showText(stream)
		if strings.TrimSpace(text) == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString("\n\n")
		}
		sb.WriteString(text)
	}
	return sb.String(), nil
}

// contentStreams returns every stream body, inflated when Flate-encoded.
func contentStreams(data []byte) [][]byte {
	var out [][]byte
	rest := data
	for {
		i := bytes.Index(rest, []byte("stream"))
		if i < 0 {
			break
		}
		// dict immediately preceding the stream keyword
		dictStart := bytes.LastIndex(rest[:i], []byte("<<"))
		flate := dictStart >= 0 && bytes.Contains(rest[dictStart:i], []byte("/FlateDecode"))

		body := rest[i+len("stream"):]
		body = bytes.TrimPrefix(body, []byte("\r\n"))
		body = bytes.TrimPrefix(body, []byte("\n"))
		end := bytes.Index(body, []byte("endstream"))
		if end < 0 {
			break
		}
		raw := body[:end]

		if flate {
			if zr, err := zlib.NewReader(bytes.NewReader(raw)); err == nil {
				if inflated, err := io.ReadAll(zr); err == nil {
					out = append(out, inflated)
				}
				zr.Close()
			}
		} else {
			out = append(out, raw)
		}
		rest = body[end+len("endstream"):]
	}
	return out
}

// showText walks a content stream and concatenates literal strings that are
// consumed by text-show operators.
func showText(stream []byte) string {
	var sb strings.Builder
	var pending []string

	i := 0
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '(':
			str, next := literalString(stream, i)
			pending = append(pending, str)
			i = next
			continue
		case 'T':
			if i+1 < len(stream) {
				switch stream[i+1] {
				case 'j', 'J':
					for _, s := range pending {
						sb.WriteString(s)
					}
					pending = pending[:0]
					i += 2
					continue
				case 'd', 'D', '*':
					// text positioning: approximate as a line break
					if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
						sb.WriteByte('\n')
					}
					pending = pending[:0]
					i += 2
					continue
				}
			}
		case '\'', '"':
			for _, s := range pending {
				sb.WriteString(s)
			}
			pending = pending[:0]
			sb.WriteByte('\n')
		}
		i++
	}
	return sb.String()
}

// literalString reads a parenthesized PDF string starting at open; returns
// the unescaped text and the index just past the closing paren.
func literalString(stream []byte, open int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := open
	for i < len(stream) {
		c := stream[i]
		switch c {
		case '\\':
			if i+1 < len(stream) {
				switch stream[i+1] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case 'r', 'f', 'b':
					// ignore
				default:
					sb.WriteByte(stream[i+1])
				}
				i += 2
				continue
			}
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
		default:
			if depth > 0 {
				sb.WriteByte(c)
			}
		}
		i++
	}
	return sb.String(), i
}
