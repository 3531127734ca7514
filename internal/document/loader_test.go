package document

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/jung-kurt/gofpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTempFile(t *testing.T, content, ext string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc-chunker-test"+ext)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write temp file: %v", err)
	}
	return path
}

// newTestPDF 生成每页一行文本的PDF
func newTestPDF(t *testing.T, pages ...string) []byte {
	t.Helper()

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetFont("Helvetica", "", 12)
	for _, text := range pages {
		pdf.AddPage()
		pdf.Cell(40, 10, text)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		t.Fatalf("Failed to write PDF: %v", err)
	}
	return buf.Bytes()
}

func createTempPDF(t *testing.T, pages ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "doc-chunker-test.pdf")
	if err := os.WriteFile(path, newTestPDF(t, pages...), 0644); err != nil {
		t.Fatalf("Failed to write temp PDF file: %v", err)
	}
	return path
}

func TestPlainTextLoader(t *testing.T) {
	content := "Hello, this is a plain text file.\nSecond line."
	file := createTempFile(t, content, ".txt")

	docs, err := NewPlainTextLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, content, docs[0].Content)
	assert.Equal(t, file, docs[0].Metadata[MetaSource])
}

func TestMarkdownLoader(t *testing.T) {
	content := "# Title\n\nThis is a **markdown** file.\n\n- Item 1\n- Item 2"
	file := createTempFile(t, content, ".md")

	docs, err := NewMarkdownLoader().Load(file)
	require.NoError(t, err)
	require.Len(t, docs, 1)

	text := docs[0].Content
	t.Logf("Markdown文本: %q", text)
	assert.Contains(t, text, "Title")
	assert.Contains(t, text, "This is a markdown file.")
	assert.Contains(t, text, "- Item 1")
	assert.NotContains(t, text, "<")
	assert.Contains(t, text, "\n\n", "段落边界应被保留")
}

func TestMarkdownLoaderReader(t *testing.T) {
	docs, err := NewMarkdownLoader().LoadReader(strings.NewReader("Fish &amp; *chips*"), "menu.md")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Fish & chips", docs[0].Content)
	assert.Equal(t, "menu.md", docs[0].Metadata[MetaSource])
}

func TestPDFLoader(t *testing.T) {
	for _, engine := range []PDFEngine{EngineLedongthuc, EnginePDFCPU} {
		t.Run(string(engine), func(t *testing.T) {
			file := createTempPDF(t, "This is a PDF test.", "Second page here.")

			docs, err := NewPDFLoader(WithEngine(engine)).Load(file)
			require.NoError(t, err)
			require.Len(t, docs, 2, "每页应生成一个文档")

			for i, doc := range docs {
				t.Logf("第%d页: %q", i, doc.Content)
			}
			assert.Contains(t, docs[0].Content, "PDF test")
			assert.Contains(t, docs[1].Content, "Second page")

			assert.Equal(t, file, docs[0].Metadata[MetaSource])
			assert.Equal(t, "0", docs[0].Metadata[MetaPage])
			assert.Equal(t, "1", docs[1].Metadata[MetaPage])
			assert.Equal(t, "2", docs[1].Metadata[MetaTotalPages])
		})
	}
}

func TestPDFLoaderReader(t *testing.T) {
	data := newTestPDF(t, "Hello World")

	docs, err := NewPDFLoader().LoadReader(bytes.NewReader(data), "sample.pdf")
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Contains(t, docs[0].Content, "Hello World")
	assert.Equal(t, "sample.pdf", docs[0].Metadata[MetaSource])
}

func TestPDFLoaderErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := NewPDFLoader().Load(filepath.Join(t.TempDir(), "missing.pdf"))
		assert.ErrorIs(t, err, ErrIO)
	})

	for _, engine := range []PDFEngine{EngineLedongthuc, EnginePDFCPU} {
		t.Run("malformed "+string(engine), func(t *testing.T) {
			file := createTempFile(t, "this is not a pdf document", ".pdf")
			_, err := NewPDFLoader(WithEngine(engine)).Load(file)
			assert.ErrorIs(t, err, ErrFormat)
		})
	}

	t.Run("unknown engine", func(t *testing.T) {
		_, err := NewPDFLoader(WithEngine("nope")).LoadReader(bytes.NewReader(newTestPDF(t, "x")), "x.pdf")
		assert.Error(t, err)
	})
}

func TestLoaderFactory(t *testing.T) {
	txtFile := createTempFile(t, "plain text", ".txt")
	mdFile := createTempFile(t, "# Markdown", ".md")
	pdfFile := createTempPDF(t, "PDF content")

	tests := []struct {
		file     string
		expected string
	}{
		{txtFile, "plain text"},
		{mdFile, "Markdown"},
		{pdfFile, "PDF content"},
	}

	for _, tt := range tests {
		loader, err := LoaderFactory(tt.file)
		require.NoError(t, err, tt.file)

		docs, err := loader.Load(tt.file)
		require.NoError(t, err, tt.file)
		require.NotEmpty(t, docs)
		assert.Contains(t, docs[0].Content, tt.expected)
	}

	_, err := LoaderFactory("archive.zip")
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestDetectContentType(t *testing.T) {
	assert.Equal(t, PDF, DetectContentType("a/B.PDF"))
	assert.Equal(t, Markdown, DetectContentType("readme.markdown"))
	assert.Equal(t, PlainText, DetectContentType("notes.txt"))
	assert.Equal(t, Unknown, DetectContentType("noext"))
}

func TestContentStreamText(t *testing.T) {
	stream := []byte("BT /F1 12 Tf 10 10 Td (Hello \\(nested\\) World) Tj ET\nBT (Second) Tj T* (line\\041) Tj ET")
	assert.Equal(t, "Hello (nested) World\nSecond\nline!", contentStreamText(stream))
}

// TestLoadAndSplitPDF 加载PDF后按200字符切分
func TestLoadAndSplitPDF(t *testing.T) {
	file := createTempPDF(t, strings.Repeat("word ", 60), "tail")

	docs, err := NewPDFLoader().Load(file)
	require.NoError(t, err)

	splitter := newTestSplitter(t, SplitterConfig{ChunkSize: 200})
	chunks, err := splitter.Split(docs)
	require.NoError(t, err)
	require.NotEmpty(t, chunks)

	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c.Text)), 200)
	}
	assert.Equal(t, "0", chunks[0].Metadata[MetaPage])
	assert.Equal(t, "1", chunks[len(chunks)-1].Metadata[MetaPage])
}
