package extract

import (
	"archive/zip"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var slidePart = regexp.MustCompile(`^ppt/slides/slide(\d+)\.xml$`)

func decodePresentation(_ context.Context, src Source) (string, error) {
	if !isZipFile(src.Path) {
		return "", degraded(fmt.Errorf("%w: %s is not an OOXML presentation", ErrUnsupported, src.Name))
	}
	zr, err := zip.OpenReader(src.Path)
	if err != nil {
		return "", degraded(err)
	}
	defer zr.Close()

	type slide struct {
		n int
		f *zip.File
	}
	var slides []slide
	for _, f := range zr.File {
		if m := slidePart.FindStringSubmatch(f.Name); m != nil {
			n, _ := strconv.Atoi(m[1])
			slides = append(slides, slide{n: n, f: f})
		}
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].n < slides[j].n })

	var out strings.Builder
	for _, s := range slides {
		rc, err := s.f.Open()
		if err != nil {
			return out.String(), degraded(err)
		}
		err = slideText(rc, &out)
		rc.Close()
		if err != nil {
			return out.String(), degraded(fmt.Errorf("slide %d: %w", s.n, err))
		}
	}
	return out.String(), nil
}

type slideShape struct {
	hasBody bool
	descr   string
	text    strings.Builder
}

// slideText appends one line per shape: the runs of a text shape, each
// followed by a space, or the alt-text description of any other shape.
func slideText(r io.Reader, out *strings.Builder) error {
	dec := xml.NewDecoder(r)
	var cur *slideShape
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "sp", "pic", "graphicFrame", "cxnSp":
				cur = &slideShape{}
			case "cNvPr":
				if cur != nil {
					for _, a := range t.Attr {
						if a.Name.Local == "descr" {
							cur.descr = a.Value
						}
					}
				}
			case "txBody":
				if cur != nil {
					cur.hasBody = true
				}
			case "t":
				inText = cur != nil && cur.hasBody
			}
		case xml.CharData:
			if inText {
				cur.text.Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				if inText {
					cur.text.WriteByte(' ')
				}
				inText = false
			case "sp", "pic", "graphicFrame", "cxnSp":
				if cur == nil {
					continue
				}
				switch {
				case cur.hasBody:
					out.WriteString(cur.text.String())
					out.WriteByte('\n')
				case cur.descr != "":
					out.WriteString(cur.descr)
					out.WriteByte('\n')
				}
				cur = nil
			}
		}
	}
}
