package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
	"time"

	"github.com/docindex/docindex/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRunner is a test double for CommandRunner. When convert is set it
// writes that payload as the LibreOffice output file.
type fakeRunner struct {
	output  []byte
	err     error
	convert []byte
	calls   [][]string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, error) {
	f.calls = append(f.calls, append([]string{name}, args...))
	if f.err != nil {
		return nil, f.err
	}
	if f.convert != nil {
		var outDir, input string
		for i, a := range args {
			if a == "--outdir" && i+1 < len(args) {
				outDir = args[i+1]
			}
		}
		input = args[len(args)-1]
		stem := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
		if err := os.WriteFile(filepath.Join(outDir, stem+".docx"), f.convert, 0o644); err != nil {
			return nil, err
		}
	}
	return f.output, nil
}

func newTestRegistry(t *testing.T, runner CommandRunner) *Registry {
	t.Helper()
	return New(Options{Runner: runner, TempDir: t.TempDir(), SpreadsheetMemoryLimit: 64 << 20})
}

func TestDetect_Precedence(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	tests := []struct {
		mime, ext string
		want      Format
	}{
		{"application/pdf", "docx", FormatPDF},
		{"application/msword", "pdf", FormatWord},
		{"application/vnd.openxmlformats-officedocument.wordprocessingml.document", "docx", FormatWord},
		{"application/vnd.openxmlformats-officedocument.presentationml.presentation", "pptx", FormatPresentation},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "xlsx", FormatSpreadsheet},
		{"application/vnd.ms-excel", "xls", FormatSpreadsheet},
		// MIME match beats an extension match of a higher family
		{"application/vnd.ms-excel", "pdf", FormatSpreadsheet},
		{"application/octet-stream", "pdf", FormatPDF},
		{"application/zip", "docx", FormatWord},
		{"application/zip", "pptx", FormatPresentation},
		{"application/octet-stream", "XLS", FormatSpreadsheet},
		{"text/plain", "txt", FormatUnsupported},
		{"", "", FormatUnsupported},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, r.Detect(tc.mime, tc.ext), "%s / %s", tc.mime, tc.ext)
	}
}

func TestExtract_Unsupported(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	path := testutil.WriteFile(t, t.TempDir(), "notes.txt", []byte("plain"))
	res, err := r.Extract(context.Background(), Source{Path: path, Name: "notes.txt", MIMEType: "text/plain", Ext: "txt"})
	require.NoError(t, err)
	assert.Equal(t, FormatUnsupported, res.Format)
	assert.Equal(t, StatusUnsupported, res.Status)
	assert.Empty(t, res.Text)
}

func TestExtract_DOCX(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	data := testutil.DOCX([]string{"First paragraph", "Second & last"}, [][]string{{"a1", "b1"}, {"a2", "b2"}})
	path := testutil.WriteFile(t, t.TempDir(), "report.docx", data)

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "report.docx", Ext: "docx"})
	require.NoError(t, err)
	assert.Equal(t, FormatWord, res.Format)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "First paragraph\nSecond & last\na1\nb1\na2\nb2\n", res.Text)
}

func TestExtract_CorruptDOCXDegrades(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	path := testutil.WriteFile(t, t.TempDir(), "broken.docx", append([]byte("PK\x03\x04"), []byte("garbage")...))
	res, err := r.Extract(context.Background(), Source{Path: path, Name: "broken.docx", Ext: "docx"})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Empty(t, res.Text)
}

func newLegacyDecoder(t *testing.T, runner CommandRunner) *wordDecoder {
	t.Helper()
	return &wordDecoder{
		bin:      "libreoffice",
		runner:   runner,
		timeout:  time.Minute,
		tempDir:  t.TempDir(),
		compound: func(string) bool { return true },
	}
}

func TestWordDecoder_LegacyDocConverted(t *testing.T) {
	runner := &fakeRunner{convert: testutil.DOCX([]string{"converted text"}, nil)}
	w := newLegacyDecoder(t, runner)
	path := testutil.WriteFile(t, t.TempDir(), "old.doc", []byte("ole bytes"))

	text, err := w.decode(context.Background(), Source{Path: path, Name: "old.doc", MIMEType: "application/msword", Ext: "doc"})
	require.NoError(t, err)
	assert.Equal(t, "converted text\n", text)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "libreoffice", runner.calls[0][0])
	assert.Contains(t, runner.calls[0], "--headless")
	assert.Equal(t, path, runner.calls[0][len(runner.calls[0])-1])
}

func TestWordDecoder_LegacyDocUsesOwnProfile(t *testing.T) {
	runner := &fakeRunner{convert: testutil.DOCX([]string{"one"}, nil)}
	w := newLegacyDecoder(t, runner)
	dir := t.TempDir()
	for _, name := range []string{"a.doc", "b.doc"} {
		path := testutil.WriteFile(t, dir, name, []byte("ole bytes"))
		_, err := w.decode(context.Background(), Source{Path: path, Name: name, Ext: "doc"})
		require.NoError(t, err)
	}
	require.Len(t, runner.calls, 2)

	var profiles []string
	for _, call := range runner.calls {
		profile := call[1]
		require.True(t, strings.HasPrefix(profile, "-env:UserInstallation=file:///"), profile)
		outDir := call[slices.Index(call, "--outdir")+1]
		assert.True(t, filepath.IsAbs(outDir))
		assert.Equal(t, "-env:UserInstallation=file://"+filepath.ToSlash(filepath.Join(outDir, "profile")), profile)
		profiles = append(profiles, profile)
	}
	assert.NotEqual(t, profiles[0], profiles[1])
}

func TestParagraphsText_SkipsFallbackContent(t *testing.T) {
	doc := `<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main" xmlns:mc="http://schemas.openxmlformats.org/markup-compatibility/2006"><w:body>
<w:p><w:r><w:t>Before</w:t></w:r>
<mc:AlternateContent>
<mc:Choice Requires="wps"><w:txbxContent><w:p><w:r><w:t>Boxed</w:t></w:r></w:p></w:txbxContent></mc:Choice>
<mc:Fallback><w:txbxContent><w:p><w:r><w:t>Boxed</w:t></w:r></w:p></w:txbxContent></mc:Fallback>
</mc:AlternateContent>
</w:p>
<w:p><w:r><w:t>After</w:t></w:r></w:p>
</w:body></w:document>`

	text, err := paragraphsText(strings.NewReader(doc))
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(text, "Boxed"))
	assert.Equal(t, "Boxed\nBefore\nAfter\n", text)
}

func TestWordDecoder_LegacyDocConversionFails(t *testing.T) {
	w := newLegacyDecoder(t, &fakeRunner{err: errors.New("exit status 1")})
	path := testutil.WriteFile(t, t.TempDir(), "old.doc", []byte("ole bytes"))

	_, err := w.decode(context.Background(), Source{Path: path, Name: "old.doc", Ext: "doc"})
	require.ErrorIs(t, err, ErrConversion)
}

func TestWordDecoder_LegacyDocMissingOutput(t *testing.T) {
	w := newLegacyDecoder(t, &fakeRunner{})
	path := testutil.WriteFile(t, t.TempDir(), "old.doc", []byte("ole bytes"))

	_, err := w.decode(context.Background(), Source{Path: path, Name: "old.doc", Ext: "doc"})
	require.ErrorIs(t, err, ErrConversion)
}

func TestExtract_LegacyDocNotCompound(t *testing.T) {
	runner := &fakeRunner{}
	r := newTestRegistry(t, runner)
	path := testutil.WriteFile(t, t.TempDir(), "fake.doc", []byte("just some text"))

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "fake.doc", Ext: "doc"})
	require.ErrorIs(t, err, ErrConversion)
	assert.Equal(t, StatusFailed, res.Status)
	assert.Empty(t, runner.calls)
}

func TestExtract_PPTX(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	data := testutil.PPTX([]testutil.Slide{
		{Texts: [][]string{{"Quarterly", "results"}}, Pictures: []string{"Revenue chart"}},
		{Texts: [][]string{{"Second"}}, Pictures: []string{""}},
	})
	path := testutil.WriteFile(t, t.TempDir(), "deck.pptx", data)

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "deck.pptx", Ext: "pptx"})
	require.NoError(t, err)
	assert.Equal(t, FormatPresentation, res.Format)
	assert.Equal(t, "Quarterly results \nRevenue chart\nSecond \n", res.Text)
}

func TestExtract_SpreadsheetSkipsEmptyRows(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	path := filepath.Join(t.TempDir(), "book.xlsx")
	testutil.XLSX(t, path, map[string][][]string{
		"Data": {{" alpha ", "", "beta"}, nil, {"", "  "}},
	})

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "book.xlsx", Ext: "xlsx"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "alpha beta", res.Text)
	assert.Len(t, strings.Split(res.Text, "\n"), 1)
}

func TestExtract_SpreadsheetFailureSentinel(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{})
	for _, name := range []string{"bad.xlsx", "bad.xls"} {
		data := []byte("not a workbook")
		if name == "bad.xlsx" {
			data = append([]byte("PK\x03\x04"), data...)
		}
		path := testutil.WriteFile(t, t.TempDir(), name, data)
		res, err := r.Extract(context.Background(), Source{Path: path, Name: name, Ext: strings.TrimPrefix(filepath.Ext(name), ".")})
		require.NoError(t, err, name)
		assert.Equal(t, StatusDegraded, res.Status, name)
		assert.Equal(t, SpreadsheetErrorText, res.Text, name)
	}
}

func TestExtract_PDFPages(t *testing.T) {
	runner := &fakeRunner{output: []byte("Hello page one\fHello page two\f")}
	r := newTestRegistry(t, runner)
	path := testutil.WriteFile(t, t.TempDir(), "two.pdf", testutil.PDF([]string{"Hello page one", "Hello page two"}))

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "two.pdf", MIMEType: "application/pdf", Ext: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, res.Format)
	assert.Contains(t, res.Text, "--- PAGE 2 ---")
	assert.NotContains(t, res.Text, "--- PAGE 1 ---")
	assert.Contains(t, res.Text, "one")
	assert.Contains(t, res.Text, "two")
}

func TestExtract_PDFFallsBackToPDFToText(t *testing.T) {
	runner := &fakeRunner{output: []byte("  first  \fsecond\f")}
	r := newTestRegistry(t, runner)
	path := testutil.WriteFile(t, t.TempDir(), "scan.pdf", []byte("%PDF-1.4 broken"))

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "scan.pdf", Ext: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, StatusOK, res.Status)
	assert.Equal(t, "first\n\n--- PAGE 2 ---\n\nsecond", res.Text)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "pdftotext", runner.calls[0][0])
}

func TestExtract_PDFTotalFailureIsEmpty(t *testing.T) {
	r := newTestRegistry(t, &fakeRunner{err: errors.New("pdftotext: not found")})
	path := testutil.WriteFile(t, t.TempDir(), "junk.pdf", []byte("nothing here"))

	res, err := r.Extract(context.Background(), Source{Path: path, Name: "junk.pdf", Ext: "pdf"})
	require.NoError(t, err)
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Empty(t, res.Text)
}

func TestJoinPages(t *testing.T) {
	assert.Equal(t, "", joinPages(nil))
	assert.Equal(t, "only", joinPages([]string{" only\n"}))
	assert.Equal(t, "a\n\n--- PAGE 2 ---\n\nb\n\n--- PAGE 3 ---\n\nc", joinPages([]string{"a", "b ", "\nc"}))
}

func TestStreamText(t *testing.T) {
	stream := []byte("BT\n/F1 12 Tf\n72 700 Td\n(Hello \\(world\\)) Tj\nT*\n[(Spa) -120 (ced)] TJ\n0 -14 Td\n(caf\\351) Tj\nET\n")
	assert.Equal(t, "Hello (world)\nSpaced café", streamText(stream))
}
