package filecontext

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/cloudwego/eino-ext/components/document/loader/file"
	"github.com/cloudwego/eino-ext/components/document/parser/pdf"
	"github.com/cloudwego/eino/components/document"
	"github.com/cloudwego/eino/components/document/parser"
	"github.com/cloudwego/eino/schema"
)

// Extractor turns a stored upload into plain text.
type Extractor interface {
	Extract(ctx context.Context, path, fileType string) (string, error)
}

// SupportedTypes lists the extensions that produce text.
var SupportedTypes = map[string]bool{
	"pdf":  true,
	"doc":  true,
	"docx": true,
	"txt":  true,
	"md":   true,
}

// LoaderExtractor reads files through the eino file loader, choosing a parser by extension.
type LoaderExtractor struct {
	loader *file.FileLoader
}

// NewLoaderExtractor wires the pdf, docx and plain-text parsers into a file loader.
func NewLoaderExtractor(ctx context.Context) (*LoaderExtractor, error) {
	pdfParser, err := pdf.NewPDFParser(ctx, &pdf.Config{ToPages: true})
	if err != nil {
		return nil, fmt.Errorf("init pdf parser: %w", err)
	}
	docx := DocxParser{}
	extParser, err := parser.NewExtParser(ctx, &parser.ExtParserConfig{
		Parsers: map[string]parser.Parser{
			".pdf":  pdfParser,
			".docx": docx,
			".doc":  docx,
			".txt":  parser.TextParser{},
			".md":   parser.TextParser{},
		},
		FallbackParser: parser.TextParser{},
	})
	if err != nil {
		return nil, fmt.Errorf("init ext parser: %w", err)
	}
	loader, err := file.NewFileLoader(ctx, &file.FileLoaderConfig{
		UseNameAsID: true,
		Parser:      extParser,
	})
	if err != nil {
		return nil, fmt.Errorf("init file loader: %w", err)
	}
	return &LoaderExtractor{loader: loader}, nil
}

// Extract returns the document text with pages or paragraphs joined by newlines.
// Unsupported types yield empty text.
func (e *LoaderExtractor) Extract(ctx context.Context, path, fileType string) (string, error) {
	if !SupportedTypes[fileType] {
		return "", nil
	}
	docs, err := e.loader.Load(ctx, document.Source{URI: path})
	if err != nil {
		return "", fmt.Errorf("load %s: %w", fileType, err)
	}
	parts := make([]string, 0, len(docs))
	for _, doc := range docs {
		if doc == nil {
			continue
		}
		parts = append(parts, doc.Content)
	}
	return strings.TrimSpace(strings.Join(parts, "\n")), nil
}

// DocxParser reads the paragraphs of an Office Open XML word document.
type DocxParser struct{}

func (DocxParser) Parse(ctx context.Context, reader io.Reader, opts ...parser.Option) ([]*schema.Document, error) {
	common := parser.GetCommonOptions(&parser.Options{}, opts...)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	paragraphs, err := docxParagraphs(data)
	if err != nil {
		return nil, err
	}
	meta := make(map[string]any, len(common.ExtraMeta))
	for k, v := range common.ExtraMeta {
		meta[k] = v
	}
	return []*schema.Document{{
		ID:       common.URI,
		Content:  strings.Join(paragraphs, "\n"),
		MetaData: meta,
	}}, nil
}

var errNoDocumentPart = errors.New("word/document.xml not found")

func docxParagraphs(data []byte) ([]string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open docx: %w", err)
	}
	var part *zip.File
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			part = f
			break
		}
	}
	if part == nil {
		return nil, errNoDocumentPart
	}
	rc, err := part.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var (
		paragraphs []string
		current    strings.Builder
		inPara     bool
		inText     bool
	)
	dec := xml.NewDecoder(rc)
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode document.xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "p":
				inPara = true
				current.Reset()
			case "t":
				inText = inPara
			case "tab":
				if inPara {
					current.WriteByte('\t')
				}
			case "br":
				if inPara {
					current.WriteByte('\n')
				}
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				paragraphs = append(paragraphs, current.String())
				inPara = false
			}
		case xml.CharData:
			if inText {
				current.Write(t)
			}
		}
	}
	return paragraphs, nil
}
