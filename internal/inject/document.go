package inject

import (
	"bytes"
	"io"

	"golang.org/x/net/html"
)

// Document inserts the regions into an HTML document: the head region right
// before the first </head>, the footer region right before the first </body>.
// A document without </head> gets the head region before <body> (or at the
// very start); one without </body> gets the footer appended. Every other byte
// of the input is preserved. If the tokenizer fails the input is returned as is.
func Document(doc []byte, regions Regions) []byte {
	if regions.Empty() {
		return doc
	}

	var out bytes.Buffer
	out.Grow(len(doc) + len(regions.Head) + len(regions.Footer))

	headDone := regions.Head == ""
	footDone := regions.Footer == ""

	z := html.NewTokenizer(bytes.NewReader(doc))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if z.Err() != io.EOF {
				return doc
			}
			break
		}

		// TagName lower-cases the buffer in place, so copy the raw bytes first.
		raw := append([]byte(nil), z.Raw()...)

		switch tt {
		case html.StartTagToken:
			name, _ := z.TagName()
			if !headDone && string(name) == "body" {
				out.WriteString(regions.Head)
				headDone = true
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			switch string(name) {
			case "head":
				if !headDone {
					out.WriteString(regions.Head)
					headDone = true
				}
			case "body":
				if !footDone {
					out.WriteString(regions.Footer)
					footDone = true
				}
			}
		}

		out.Write(raw)
	}

	result := out.Bytes()
	if !headDone {
		result = append([]byte(regions.Head), result...)
	}
	if !footDone {
		result = append(result, regions.Footer...)
	}
	return result
}
