// Package epub reads and rewrites EPUB containers for translation. Only the
// entries the pipeline touches are re-encoded; everything else is copied
// through byte for byte so fonts, images and obscure extras survive intact.
package epub

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/beevik/etree"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"
	"golang.org/x/net/html/charset"
)

const (
	mimetypeContent = "application/epub+zip"
	containerPath   = "META-INF/container.xml"

	xhtmlMediaType = "application/xhtml+xml"
	ncxMediaType   = "application/x-dtbncx+xml"
)

// Container is an opened book archive together with its parsed package
// document.
type Container struct {
	path    string
	rc      *zip.ReadCloser
	files   map[string]*zip.File
	opfPath string
	opf     *etree.Document
	spine   []string
	ncxPath string
	log     *zap.Logger
}

// Open reads the archive and resolves the package document, the spine and
// the NCX location.
func Open(bookPath string, log *zap.Logger) (*Container, error) {
	rc, err := zip.OpenReader(bookPath)
	if err != nil {
		// on ErrInsecurePath a usable reader is still returned
		if rc != nil {
			rc.Close()
		}
		return nil, fmt.Errorf("unable to open book %s: %w", bookPath, err)
	}

	c := &Container{
		path:  bookPath,
		rc:    rc,
		files: make(map[string]*zip.File, len(rc.File)),
		log:   log,
	}
	for _, f := range rc.File {
		if !isSafeEntryName(f.Name) {
			rc.Close()
			return nil, fmt.Errorf("entry %q in %s: unsafe path (absolute or contains path traversal)", f.Name, bookPath)
		}
		c.files[f.Name] = f
	}

	if err := c.resolveRootfile(); err != nil {
		rc.Close()
		return nil, err
	}
	if err := c.parsePackage(); err != nil {
		rc.Close()
		return nil, err
	}

	log.Debug("Opened book",
		zap.String("opf", c.opfPath),
		zap.Int("spine", len(c.spine)),
		zap.String("ncx", c.ncxPath))
	return c, nil
}

func (c *Container) Close() error {
	return c.rc.Close()
}

// OPF returns the parsed package document. Mutations become part of the
// rewritten archive.
func (c *Container) OPF() *etree.Document { return c.opf }

// OPFPath returns the archive path of the package document.
func (c *Container) OPFPath() string { return c.opfPath }

// Spine returns archive paths of the reading-order documents.
func (c *Container) Spine() []string {
	return append([]string(nil), c.spine...)
}

// NCXPath returns the archive path of the NCX navigation document, or empty
// when the book has none.
func (c *Container) NCXPath() string { return c.ncxPath }

func (c *Container) resolveRootfile() error {
	doc, err := c.ReadDocument(containerPath)
	if err != nil {
		return fmt.Errorf("unable to read container descriptor: %w", err)
	}
	root := doc.Root()
	if root == nil {
		return fmt.Errorf("empty container descriptor in %s", c.path)
	}
	for _, rf := range root.FindElements("//rootfile") {
		if p := rf.SelectAttrValue("full-path", ""); p != "" {
			c.opfPath = p
			return nil
		}
	}
	return fmt.Errorf("no rootfile declared in %s", c.path)
}

func (c *Container) parsePackage() error {
	opf, err := c.ReadDocument(c.opfPath)
	if err != nil {
		return fmt.Errorf("unable to read package document: %w", err)
	}
	c.opf = opf

	root := opf.Root()
	if root == nil {
		return fmt.Errorf("empty package document %s", c.opfPath)
	}

	type manifestItem struct {
		href      string
		mediaType string
	}
	manifest := make(map[string]manifestItem)
	if m := root.SelectElement("manifest"); m != nil {
		for _, item := range m.ChildElements() {
			if item.Tag != "item" {
				continue
			}
			id := item.SelectAttrValue("id", "")
			mi := manifestItem{
				href:      c.resolveHref(item.SelectAttrValue("href", "")),
				mediaType: item.SelectAttrValue("media-type", ""),
			}
			manifest[id] = mi
			if mi.mediaType == ncxMediaType && c.ncxPath == "" {
				c.ncxPath = mi.href
			}
		}
	}

	spine := root.SelectElement("spine")
	if spine == nil {
		return fmt.Errorf("no spine in package document %s", c.opfPath)
	}
	for _, ref := range spine.ChildElements() {
		if ref.Tag != "itemref" {
			continue
		}
		item, ok := manifest[ref.SelectAttrValue("idref", "")]
		if !ok {
			c.log.Warn("Spine references unknown manifest item",
				zap.String("idref", ref.SelectAttrValue("idref", "")))
			continue
		}
		if item.mediaType == xhtmlMediaType {
			c.spine = append(c.spine, item.href)
		}
	}
	return nil
}

// isSafeEntryName returns false for archive paths that could escape the
// extraction directory: absolute paths and those containing ".." components.
func isSafeEntryName(name string) bool {
	if path.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == ".." {
			return false
		}
	}
	return true
}

// resolveHref maps a manifest href to an archive path relative to the
// package document.
func (c *Container) resolveHref(href string) string {
	if href == "" {
		return ""
	}
	return path.Join(path.Dir(c.opfPath), href)
}

// ReadEntry returns the raw bytes of an archive entry.
func (c *Container) ReadEntry(name string) ([]byte, error) {
	f, ok := c.files[name]
	if !ok {
		return nil, fmt.Errorf("no entry %s in %s", name, c.path)
	}
	r, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("unable to open entry %s: %w", name, err)
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("unable to read entry %s: %w", name, err)
	}
	return data, nil
}

// ReadDocument parses an archive entry as XML, tolerating the loose markup
// found in books in the wild.
func (c *Container) ReadDocument(name string) (*etree.Document, error) {
	data, err := c.ReadEntry(name)
	if err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	doc.ReadSettings.Permissive = true
	doc.ReadSettings.CharsetReader = charset.NewReaderLabel
	doc.ReadSettings.Entity = xml.HTMLEntity
	if err := doc.ReadFromBytes(data); err != nil {
		return nil, fmt.Errorf("unable to parse %s: %w", name, err)
	}
	return doc, nil
}

// WriteTo produces the output archive: the mimetype entry first and stored,
// replaced entries re-encoded, everything else copied through unchanged. The
// final pass strips data descriptors, which some readers choke on.
func (c *Container) WriteTo(outputPath string, replaced map[string][]byte) error {
	tmpName := outputPath + ".tmp"

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}

	for _, file := range c.rc.File {
		if file.Name == "mimetype" {
			continue
		}
		if data, ok := replaced[file.Name]; ok {
			w, err := zw.CreateHeader(&zip.FileHeader{
				Name:     file.Name,
				Method:   zip.Deflate,
				Modified: file.Modified,
			})
			if err != nil {
				return fmt.Errorf("unable to create entry %s: %w", file.Name, err)
			}
			if _, err := w.Write(data); err != nil {
				return fmt.Errorf("unable to write entry %s: %w", file.Name, err)
			}
			continue
		}
		if err := zw.Copy(file); err != nil {
			return fmt.Errorf("unable to copy entry %s: %w", file.Name, err)
		}
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	defer os.Remove(tmpName)

	return copyZipWithoutDataDescriptors(tmpName, outputPath)
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag.
		file.Flags &= ^fixzip.FlagDataDescriptor

		// copy zip entry
		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}
