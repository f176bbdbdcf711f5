package epub

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/beevik/etree"
	"go.uber.org/zap/zaptest"
)

const testOPF = `<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="2.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">
    <dc:title>Test Book</dc:title>
    <dc:creator>Test Author</dc:creator>
    <dc:language>en</dc:language>
  </metadata>
  <manifest>
    <item id="ch1" href="chapter1.xhtml" media-type="application/xhtml+xml"/>
    <item id="ch2" href="chapter2.xhtml" media-type="application/xhtml+xml"/>
    <item id="css" href="style.css" media-type="text/css"/>
    <item id="ncx" href="toc.ncx" media-type="application/x-dtbncx+xml"/>
  </manifest>
  <spine toc="ncx">
    <itemref idref="ch1"/>
    <itemref idref="ch2"/>
  </spine>
</package>`

const testNCX = `<?xml version="1.0" encoding="UTF-8"?>
<ncx xmlns="http://www.daisy.org/z3986/2005/ncx/" version="2005-1">
  <navMap>
    <navPoint id="np1">
      <navLabel><text>Chapter One</text></navLabel>
      <content src="chapter1.xhtml"/>
      <navPoint id="np2">
        <navLabel><text>Section</text></navLabel>
        <content src="chapter1.xhtml#s1"/>
      </navPoint>
    </navPoint>
  </navMap>
</ncx>`

const testChapter = `<?xml version="1.0" encoding="UTF-8"?>
<html xmlns="http://www.w3.org/1999/xhtml"><head><title>One</title></head>
<body><p>Hello there.</p></body></html>`

func writeTestBook(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "book.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("unable to create test book: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	if err := writeMimetype(zw); err != nil {
		t.Fatalf("unable to write mimetype: %v", err)
	}
	entries := map[string]string{
		"META-INF/container.xml": `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="OEBPS/content.opf" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`,
		"OEBPS/content.opf":     testOPF,
		"OEBPS/chapter1.xhtml":  testChapter,
		"OEBPS/chapter2.xhtml":  testChapter,
		"OEBPS/style.css":       "p { margin: 0; }",
		"OEBPS/toc.ncx":         testNCX,
	}
	for _, name := range []string{"META-INF/container.xml", "OEBPS/content.opf", "OEBPS/chapter1.xhtml", "OEBPS/chapter2.xhtml", "OEBPS/style.css", "OEBPS/toc.ncx"} {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("unable to create entry %s: %v", name, err)
		}
		if _, err := w.Write([]byte(entries[name])); err != nil {
			t.Fatalf("unable to write entry %s: %v", name, err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unable to close test book: %v", err)
	}
	return p
}

func TestOpenRejectsUnsafeEntries(t *testing.T) {
	p := filepath.Join(t.TempDir(), "evil.epub")
	f, err := os.Create(p)
	if err != nil {
		t.Fatalf("unable to create test book: %v", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	w, err := zw.CreateHeader(&zip.FileHeader{Name: "../escape.xhtml", Method: zip.Deflate})
	if err != nil {
		t.Fatalf("unable to create entry: %v", err)
	}
	if _, err := w.Write([]byte("payload")); err != nil {
		t.Fatalf("unable to write entry: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("unable to close test book: %v", err)
	}

	if _, err := Open(p, zaptest.NewLogger(t)); err == nil {
		t.Error("expected error for archive with path traversal entry")
	}
}

func TestOpenResolvesPackage(t *testing.T) {
	c, err := Open(writeTestBook(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unable to open book: %v", err)
	}
	defer c.Close()

	if c.OPFPath() != "OEBPS/content.opf" {
		t.Errorf("unexpected opf path: %s", c.OPFPath())
	}
	spine := c.Spine()
	if len(spine) != 2 || spine[0] != "OEBPS/chapter1.xhtml" || spine[1] != "OEBPS/chapter2.xhtml" {
		t.Errorf("unexpected spine: %v", spine)
	}
	if c.NCXPath() != "OEBPS/toc.ncx" {
		t.Errorf("unexpected ncx path: %s", c.NCXPath())
	}
}

func TestMetadataFields(t *testing.T) {
	c, err := Open(writeTestBook(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unable to open book: %v", err)
	}
	defer c.Close()

	fields := MetadataFields(c.OPF())
	if len(fields) != 2 {
		t.Fatalf("expected 2 translatable fields, got %v", fields)
	}
	if fields[0].TagName != "title" || fields[0].Text != "Test Book" {
		t.Errorf("unexpected first field: %+v", fields[0])
	}
	if fields[1].TagName != "creator" || fields[1].Text != "Test Author" {
		t.Errorf("unexpected second field: %+v", fields[1])
	}

	fields[0].Text = "Livre de Test"
	ApplyMetadataFields(c.OPF(), fields)
	if got := MetadataFields(c.OPF())[0].Text; got != "Livre de Test" {
		t.Errorf("expected applied title, got %q", got)
	}
}

func TestWriteToReplacesOnlyNamedEntries(t *testing.T) {
	c, err := Open(writeTestBook(t), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("unable to open book: %v", err)
	}
	defer c.Close()

	out := filepath.Join(t.TempDir(), "out.epub")
	replaced := map[string][]byte{
		"OEBPS/chapter1.xhtml": []byte("<html><body><p>Bonjour.</p></body></html>"),
	}
	if err := c.WriteTo(out, replaced); err != nil {
		t.Fatalf("unable to write book: %v", err)
	}

	rc, err := zip.OpenReader(out)
	if err != nil {
		t.Fatalf("unable to reopen output: %v", err)
	}
	defer rc.Close()

	if rc.File[0].Name != "mimetype" || rc.File[0].Method != zip.Store {
		t.Errorf("mimetype must be the first, stored entry, got %s (%d)", rc.File[0].Name, rc.File[0].Method)
	}

	read := func(name string) string {
		t.Helper()
		for _, f := range rc.File {
			if f.Name != name {
				continue
			}
			r, err := f.Open()
			if err != nil {
				t.Fatalf("unable to open %s: %v", name, err)
			}
			defer r.Close()
			data := make([]byte, f.UncompressedSize64)
			if _, err := io.ReadFull(r, data); err != nil {
				t.Fatalf("unable to read %s: %v", name, err)
			}
			return string(data)
		}
		t.Fatalf("entry %s missing from output", name)
		return ""
	}

	if got := read("OEBPS/chapter1.xhtml"); got != "<html><body><p>Bonjour.</p></body></html>" {
		t.Errorf("replaced entry mismatch: %q", got)
	}
	if got := read("OEBPS/style.css"); got != "p { margin: 0; }" {
		t.Errorf("untouched entry changed: %q", got)
	}
}

func TestParseAndApplyNCX(t *testing.T) {
	doc := etree.NewDocument()
	if err := doc.ReadFromString(testNCX); err != nil {
		t.Fatalf("unable to parse ncx: %v", err)
	}

	tocs := ParseNCX(doc)
	if len(tocs) != 1 || tocs[0].Title != "Chapter One" || tocs[0].Href != "chapter1.xhtml" {
		t.Fatalf("unexpected toc root: %+v", tocs)
	}
	child := tocs[0].Children
	if len(child) != 1 || child[0].Title != "Section" || child[0].Fragment != "s1" {
		t.Fatalf("unexpected toc child: %+v", child)
	}

	tocs[0].Title = "Chapitre Un"
	child[0].Title = "Partie"
	ApplyNCX(doc, tocs)

	again := ParseNCX(doc)
	if again[0].Title != "Chapitre Un" || again[0].Children[0].Title != "Partie" {
		t.Errorf("applied titles not found: %+v", again)
	}
}

func TestTocTranscodeRoundTrip(t *testing.T) {
	original := []*Toc{
		{Title: "Chapter 1", Href: "ch1.xhtml", ID: "ch1"},
		{Title: "Part 1", Children: []*Toc{
			{Title: "Chapter 2", Href: "ch2.xhtml", Fragment: "s2"},
		}},
	}

	decoded := DecodeTocList(EncodeTocList(original))
	if len(decoded) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(decoded))
	}
	if decoded[0].Title != "Chapter 1" || decoded[0].Href != "ch1.xhtml" || decoded[0].ID != "ch1" {
		t.Errorf("unexpected first entry: %+v", decoded[0])
	}
	if len(decoded[1].Children) != 1 || decoded[1].Children[0].Fragment != "s2" {
		t.Errorf("unexpected nested entry: %+v", decoded[1])
	}
	if decoded[1].Href != "" {
		t.Errorf("absent href must stay empty, got %q", decoded[1].Href)
	}
}

func TestMetadataTranscodeRoundTrip(t *testing.T) {
	original := []MetadataField{
		{TagName: "title", Text: `Title with <special> & "quotes"`},
		{TagName: "creator", Text: "Author 1"},
		{TagName: "creator", Text: "Author 2"},
	}

	decoded := DecodeMetadata(EncodeMetadata(original))
	if len(decoded) != len(original) {
		t.Fatalf("expected %d fields, got %d", len(original), len(decoded))
	}
	for i := range original {
		if decoded[i] != original[i] {
			t.Errorf("field %d: expected %+v, got %+v", i, original[i], decoded[i])
		}
	}
}

func mathFromString(t *testing.T, src string) *etree.Element {
	t.Helper()
	doc := etree.NewDocument()
	if err := doc.ReadFromString(src); err != nil {
		t.Fatalf("unable to parse mathml: %v", err)
	}
	return doc.Root()
}

func TestMathToLaTeX(t *testing.T) {
	cases := []struct {
		name string
		src  string
		want string
	}{
		{"fraction", `<math><mfrac><mn>1</mn><mn>2</mn></mfrac></math>`, `\frac{1}{2}`},
		{"subscript", `<math><msub><mi>x</mi><mn>0</mn></msub></math>`, `x_{0}`},
		{"operator", `<math><mi>x</mi><mo>≤</mo><mn>1</mn></math>`, `x\leq1`},
		{"multichar identifier", `<math><mi>sin</mi></math>`, `\mathrm{sin}`},
		{"sum limits", `<math><munderover><mo>∑</mo><mn>1</mn><mi>n</mi></munderover></math>`, `\sum_{1}^{n}`},
		{"overset", `<math><munderover><mi>x</mi><mn>1</mn><mn>2</mn></munderover></math>`, `\overset{2}{\underset{1}{x}}`},
		{"sqrt", `<math><msqrt><mi>x</mi></msqrt></math>`, `\sqrt{x}`},
		{"root", `<math><mroot><mi>x</mi><mn>3</mn></mroot></math>`, `\sqrt[3]{x}`},
		{"text", `<math><mtext>iff</mtext></math>`, `\text{iff}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := MathToLaTeX(mathFromString(t, tc.src)); got != tc.want {
				t.Errorf("expected %q, got %q", tc.want, got)
			}
		})
	}
}
