package extract

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var errNoText = errors.New("no text layer")

type pdfDecoder struct {
	bin     string
	runner  CommandRunner
	timeout time.Duration
}

type pageReader func(ctx context.Context, path string) ([]string, error)

// decode tries the embedded text layer, then raw content streams, then
// pdftotext. The first tier that yields any text wins.
func (p *pdfDecoder) decode(ctx context.Context, src Source) (string, error) {
	tiers := []struct {
		name string
		read pageReader
	}{
		{"text layer", readTextLayer},
		{"content streams", readContentStreams},
		{"pdftotext", p.readPDFToText},
	}
	var errs []error
	for _, tier := range tiers {
		pages, err := tier.read(ctx, src.Path)
		if err == nil && !blank(pages) {
			return joinPages(pages), nil
		}
		if err == nil {
			err = errNoText
		}
		errs = append(errs, fmt.Errorf("%s: %w", tier.name, err))
		if ctx.Err() != nil {
			break
		}
	}
	return "", degraded(errors.Join(errs...))
}

// joinPages trims every page and separates consecutive pages with a
// numbered marker.
func joinPages(pages []string) string {
	var b strings.Builder
	for i, page := range pages {
		if i > 0 {
			b.WriteString("\n\n--- PAGE ")
			b.WriteString(strconv.Itoa(i + 1))
			b.WriteString(" ---\n\n")
		}
		b.WriteString(strings.TrimSpace(page))
	}
	return b.String()
}

func blank(pages []string) bool {
	for _, p := range pages {
		if strings.TrimSpace(p) != "" {
			return false
		}
	}
	return true
}

func readTextLayer(_ context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdf reader panic: %v", r)
		}
	}()
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	n := r.NumPage()
	pages = make([]string, 0, n)
	for i := 1; i <= n; i++ {
		pages = append(pages, pageText(r, i))
	}
	return pages, nil
}

// pageText isolates panics from malformed pages so one bad page only loses
// its own text.
func pageText(r *pdf.Reader, i int) (text string) {
	defer func() {
		if rec := recover(); rec != nil {
			text = ""
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}

func readContentStreams(_ context.Context, path string) (pages []string, err error) {
	defer func() {
		if r := recover(); r != nil {
			pages, err = nil, fmt.Errorf("pdfcpu panic: %v", r)
		}
	}()
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed
	pctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("pdfcpu read: %w", err)
	}
	pages = make([]string, 0, pctx.PageCount)
	for n := 1; n <= pctx.PageCount; n++ {
		r, err := pdfcpu.ExtractPageContent(pctx, n)
		if err != nil || r == nil {
			pages = append(pages, "")
			continue
		}
		data, err := io.ReadAll(r)
		if err != nil {
			pages = append(pages, "")
			continue
		}
		pages = append(pages, streamText(data))
	}
	return pages, nil
}

func (p *pdfDecoder) readPDFToText(ctx context.Context, path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	out, err := p.runner.Run(ctx, p.bin, "-layout", "-enc", "UTF-8", path, "-")
	if err != nil {
		return nil, err
	}
	text := strings.TrimSuffix(string(out), "\f")
	return strings.Split(text, "\f"), nil
}

// streamText pulls the string operands of text-showing operators out of a
// decoded page content stream. Line and positioning operators become
// whitespace.
func streamText(data []byte) string {
	var b strings.Builder
	for i := 0; i < len(data); i++ {
		switch data[i] {
		case '(':
			s, next := readLiteral(data, i+1)
			b.WriteString(s)
			i = next
		case '<':
			// hex strings and dictionaries carry no readable text here
			for i < len(data) && data[i] != '>' {
				i++
			}
		case 'T':
			if i+1 < len(data) && operatorEnd(data, i+2) {
				switch data[i+1] {
				case '*':
					b.WriteByte('\n')
				case 'd', 'D':
					b.WriteByte(' ')
				}
			}
		case 'E':
			if i+1 < len(data) && data[i+1] == 'T' && operatorEnd(data, i+2) && (i == 0 || isSpace(data[i-1])) {
				b.WriteByte('\n')
			}
		case '\'', '"':
			b.WriteByte('\n')
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.Join(strings.Fields(l), " "); l != "" {
			out = append(out, l)
		}
	}
	return strings.Join(out, "\n")
}

func operatorEnd(data []byte, i int) bool {
	return i >= len(data) || isSpace(data[i]) || data[i] == '[' || data[i] == '(' || data[i] == '/'
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t' || c == '\f' || c == 0
}

// readLiteral decodes a PDF literal string starting just after its opening
// parenthesis and returns the text and the index of the closing parenthesis.
func readLiteral(data []byte, i int) (string, int) {
	var b strings.Builder
	depth := 1
	for ; i < len(data); i++ {
		c := data[i]
		switch {
		case c == '\\' && i+1 < len(data):
			i++
			switch e := data[i]; e {
			case 'n':
				b.WriteByte('\n')
			case 'r':
				b.WriteByte('\r')
			case 't':
				b.WriteByte('\t')
			case 'b', 'f':
			case '\r', '\n':
				// line continuation
			default:
				if e >= '0' && e <= '7' {
					v := int(e - '0')
					for k := 0; k < 2 && i+1 < len(data) && data[i+1] >= '0' && data[i+1] <= '7'; k++ {
						i++
						v = v*8 + int(data[i]-'0')
					}
					b.WriteRune(rune(v & 0xFF))
				} else {
					b.WriteByte(e)
				}
			}
		case c == '(':
			depth++
			b.WriteByte(c)
		case c == ')':
			depth--
			if depth == 0 {
				return b.String(), i
			}
			b.WriteByte(c)
		case c < 0x80:
			b.WriteByte(c)
		default:
			// single-byte font encodings; read as Latin-1
			b.WriteRune(rune(c))
		}
	}
	return b.String(), i
}
