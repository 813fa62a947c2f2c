package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/richardlehane/mscfb"
)

type wordDecoder struct {
	bin     string
	runner  CommandRunner
	timeout time.Duration
	tempDir string
	// compound sniffs the OLE container; replaced in tests.
	compound func(path string) bool
}

func (w *wordDecoder) decode(ctx context.Context, src Source) (string, error) {
	if w.legacy(src) {
		return w.decodeLegacy(ctx, src)
	}
	text, err := docxText(src.Path)
	if err != nil {
		return "", degraded(err)
	}
	return text, nil
}

// legacy reports whether src is a binary .doc rather than an OOXML package.
// Content wins over the name: a zip is always treated as .docx.
func (w *wordDecoder) legacy(src Source) bool {
	if isZipFile(src.Path) {
		return false
	}
	return src.Ext == "doc" || strings.Contains(src.MIMEType, "msword") || w.isCompound(src.Path)
}

// decodeLegacy converts a .doc to .docx with LibreOffice and decodes the
// result. Every failure on this path is an ErrConversion.
func (w *wordDecoder) decodeLegacy(ctx context.Context, src Source) (string, error) {
	if !w.isCompound(src.Path) {
		return "", fmt.Errorf("%w: %s is not an OLE compound document", ErrConversion, src.Name)
	}
	outDir, err := os.MkdirTemp(w.tempDir, "doc-convert-*")
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}
	defer os.RemoveAll(outDir)

	absOut, err := filepath.Abs(outDir)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrConversion, err)
	}

	cctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	if _, err := w.runner.Run(cctx, w.bin, conversionArgs(absOut, src.Path)...); err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversion, src.Name, err)
	}
	stem := strings.TrimSuffix(filepath.Base(src.Path), filepath.Ext(src.Path))
	converted := filepath.Join(outDir, stem+".docx")
	text, err := docxText(converted)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrConversion, src.Name, err)
	}
	return text, nil
}

// conversionArgs builds the LibreOffice command line. Each call gets its own
// user profile under outDir.
func conversionArgs(outDir, input string) []string {
	profile := url.URL{Scheme: "file", Path: filepath.ToSlash(filepath.Join(outDir, "profile"))}
	return []string{
		"-env:UserInstallation=" + profile.String(),
		"--headless", "--convert-to", "docx", "--outdir", outDir, input,
	}
}

func (w *wordDecoder) isCompound(path string) bool {
	if w.compound != nil {
		return w.compound(path)
	}
	return isCompoundFile(path)
}

func isZipFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	head := make([]byte, 4)
	if _, err := io.ReadFull(f, head); err != nil {
		return false
	}
	return bytes.Equal(head, []byte("PK\x03\x04"))
}

func isCompoundFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	_, err = mscfb.New(f)
	return err == nil
}

// docxText returns the body text of a .docx: every paragraph, including those
// inside table cells, in document order, each followed by a newline.
func docxText(path string) (string, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("open docx: %w", err)
	}
	defer zr.Close()

	part, err := zr.Open("word/document.xml")
	if err != nil {
		return "", fmt.Errorf("word/document.xml: %w", err)
	}
	defer part.Close()
	return paragraphsText(part)
}

func paragraphsText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var out strings.Builder
	// text boxes nest paragraphs inside paragraphs
	var open []*strings.Builder
	inText := false
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", fmt.Errorf("parse document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "Fallback":
				// mc:Fallback repeats the mc:Choice content for older readers
				if err := dec.Skip(); err != nil {
					return "", fmt.Errorf("parse document.xml: %w", err)
				}
			case "p":
				open = append(open, &strings.Builder{})
			case "t":
				inText = len(open) > 0
			case "tab":
				if len(open) > 0 {
					open[len(open)-1].WriteByte('\t')
				}
			case "br", "cr":
				if len(open) > 0 {
					open[len(open)-1].WriteByte('\n')
				}
			}
		case xml.CharData:
			if inText {
				open[len(open)-1].Write(t)
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if len(open) == 0 {
					continue
				}
				p := open[len(open)-1]
				open = open[:len(open)-1]
				out.WriteString(p.String())
				out.WriteByte('\n')
			}
		}
	}
	return out.String(), nil
}
