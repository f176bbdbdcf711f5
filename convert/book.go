package convert

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime/debug"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"ept/epub"
	"ept/state"
	"ept/translate"
)

// pipeline bundles everything needed to translate one book. It is built once
// per run and reused across books.
type pipeline struct {
	env        *state.LocalEnv
	translator *translate.Translator
	kind       translate.SubmitKind
}

// processBook translates a single EPUB file. "src" is part of the source path
// (always including file name) relative to the original path. "dst" is the
// destination directory where the translated book should be written.
func processBook(ctx context.Context, path, src, dst string, tr *pipeline, log *zap.Logger) (rerr error) {
	env := tr.env

	// books have no reliable unique identifier, tag the run instead
	refID := uuid.NewString()
	var outputName string

	log.Info("Translation starting", zap.String("from", src), zap.String("ref_id", refID))
	defer func(start time.Time) {
		// NOTE: a single malformed book must not stop a batch run
		if r := recover(); r != nil {
			log.Error("Translation ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("translation panic: %v", r)
		} else {
			log.Info("Translation completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.String("ref_id", refID))
		}
	}(time.Now())

	c, err := epub.Open(path, log)
	if err != nil {
		return fmt.Errorf("unable to open book (%s): %w", src, err)
	}
	defer c.Close()

	replaced := make(map[string][]byte)

	for _, name := range c.Spine() {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := translateDocument(ctx, c, name, tr, log)
		if err != nil {
			return fmt.Errorf("unable to translate %s: %w", name, err)
		}
		if data != nil {
			replaced[name] = data
		}
	}

	if env.Cfg.Document.TranslateToc {
		if err := translateToc(ctx, c, tr, replaced, log); err != nil {
			return fmt.Errorf("unable to translate table of contents: %w", err)
		}
	}
	if env.Cfg.Document.TranslateMetadata {
		if err := translateMetadata(ctx, c, tr, replaced); err != nil {
			return fmt.Errorf("unable to translate metadata: %w", err)
		}
	}

	// Determine output file name and path based on input and configuration.
	outputName = buildOutputPath(c, src, dst, env)

	// Check if output file already exists
	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := c.WriteTo(outputName, replaced); err != nil {
		return fmt.Errorf("unable to write output: %w", err)
	}

	// Store translation result for debugging
	if env.Rpt != nil {
		env.Rpt.Store(fmt.Sprintf("result-%s%s", refID, filepath.Ext(outputName)), outputName)
	}

	return nil
}

// translateDocument runs one spine document through the pipeline and returns
// its re-encoded bytes, or nil when there is nothing to translate.
func translateDocument(ctx context.Context, c *epub.Container, name string, tr *pipeline, log *zap.Logger) ([]byte, error) {
	doc, err := c.ReadDocument(name)
	if err != nil {
		return nil, err
	}
	root := doc.Root()
	if root == nil {
		return nil, nil
	}
	body := root.FindElement("//body")
	if body == nil {
		log.Debug("Document has no body", zap.String("name", name))
		return nil, nil
	}

	if tr.env.Cfg.Document.ConvertMath {
		annotateMath(body)
	}

	if _, err := tr.translator.TranslateElement(ctx, body, tr.kind); err != nil {
		return nil, err
	}
	return doc.WriteToBytes()
}

// translateToc round-trips the NCX navigation tree through the pipeline.
// Navigation must stay compact, so titles are always replaced regardless of
// the configured submit mode.
func translateToc(ctx context.Context, c *epub.Container, tr *pipeline, replaced map[string][]byte, log *zap.Logger) error {
	if c.NCXPath() == "" {
		log.Debug("Book has no NCX navigation")
		return nil
	}
	doc, err := c.ReadDocument(c.NCXPath())
	if err != nil {
		return err
	}
	tocs := epub.ParseNCX(doc)
	if len(tocs) == 0 {
		return nil
	}

	encoded := epub.EncodeTocList(tocs)
	if _, err := tr.translator.TranslateElement(ctx, encoded, translate.SubmitKindReplace); err != nil {
		return err
	}
	epub.ApplyNCX(doc, epub.DecodeTocList(encoded))

	data, err := doc.WriteToBytes()
	if err != nil {
		return err
	}
	replaced[c.NCXPath()] = data
	return nil
}

// translateMetadata round-trips the translatable package metadata through the
// pipeline and re-encodes the package document.
func translateMetadata(ctx context.Context, c *epub.Container, tr *pipeline, replaced map[string][]byte) error {
	fields := epub.MetadataFields(c.OPF())
	if len(fields) == 0 {
		return nil
	}

	encoded := epub.EncodeMetadata(fields)
	if _, err := tr.translator.TranslateElement(ctx, encoded, translate.SubmitKindReplace); err != nil {
		return err
	}
	epub.ApplyMetadataFields(c.OPF(), epub.DecodeMetadata(encoded))

	data, err := c.OPF().WriteToBytes()
	if err != nil {
		return err
	}
	replaced[c.OPFPath()] = data
	return nil
}

// annotateMath attaches a LaTeX rendition to every formula so readers that
// lost MathML support after translation still show something sensible.
// Formula internals are never sent for translation.
func annotateMath(root *etree.Element) {
	for _, el := range root.FindElements("//math") {
		if latex := epub.MathToLaTeX(el); latex != "" {
			el.CreateAttr("alttext", latex)
		}
	}
}
