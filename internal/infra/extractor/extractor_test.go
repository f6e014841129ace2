package extractor

import (
	"archive/zip"
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/complianceops/riskextract/internal/domain/documents"
)

func doc(mime string) *documents.Document {
	return &documents.Document{ID: "doc-1", TenantID: "acme", MimeType: mime}
}

func TestExtractPlainTextSegments(t *testing.T) {
	e := New(10) // 40-char budget
	text := "First paragraph about risk.\n\nSecond paragraph about controls.\n\nThird one."

	segs, err := e.Extract(context.Background(), doc(MimePlain), []byte(text))
	require.NoError(t, err)
	require.NotEmpty(t, segs)

	for i, s := range segs {
		assert.Equal(t, i+1, s.Ordinal)
		assert.Equal(t, documents.DocumentID("doc-1"), s.DocumentID)
		assert.NotEmpty(t, s.ID)
		assert.Equal(t, estimateTokens(s.Content), s.TokenCount)
		assert.LessOrEqual(t, s.TokenCount, 10+1) // paragraph joins may round up by one
	}
	// paragraph text survives segmentation intact
	joined := ""
	for _, s := range segs {
		joined += s.Content + "\n\n"
	}
	assert.Contains(t, joined, "First paragraph about risk.")
	assert.Contains(t, joined, "Second paragraph about controls.")
	assert.Contains(t, joined, "Third one.")
}

func TestExtractDeterministicSegmentation(t *testing.T) {
	e := New(10)
	text := "Alpha beta gamma.\n\nDelta epsilon zeta eta theta.\n\nIota kappa."

	a, err := e.Extract(context.Background(), doc(MimePlain), []byte(text))
	require.NoError(t, err)
	b, err := e.Extract(context.Background(), doc(MimePlain), []byte(text))
	require.NoError(t, err)

	require.Equal(t, len(a), len(b))
	for i := range a {
		assert.Equal(t, a[i].Content, b[i].Content)
		assert.Equal(t, a[i].Ordinal, b[i].Ordinal)
	}
}

func TestExtractOversizedParagraphHardSplits(t *testing.T) {
	e := New(5) // 20-char budget
	text := strings.Repeat("word ", 30)

	segs, err := e.Extract(context.Background(), doc(MimePlain), []byte(text))
	require.NoError(t, err)
	require.Greater(t, len(segs), 1)
	for _, s := range segs {
		assert.LessOrEqual(t, len(s.Content), 20)
		// splits land on word boundaries
		assert.False(t, strings.HasPrefix(s.Content, " "))
		assert.False(t, strings.HasSuffix(s.Content, " "))
	}
}

func TestExtractEmptyDocumentYieldsNoSegments(t *testing.T) {
	e := New(2000)
	segs, err := e.Extract(context.Background(), doc(MimeMarkdown), []byte("  \n\n \n"))
	require.NoError(t, err)
	assert.Empty(t, segs)
}

func TestExtractUnsupportedMime(t *testing.T) {
	e := New(2000)
	_, err := e.Extract(context.Background(), doc("application/zip"), []byte("PK"))
	assert.ErrorIs(t, err, documents.ErrUnsupportedFormat)
}

func TestExtractMimeParametersIgnored(t *testing.T) {
	e := New(2000)
	segs, err := e.Extract(context.Background(), doc("text/plain; charset=utf-8"), []byte("hello risk world"))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Equal(t, "hello risk world", segs[0].Content)
}

func TestSupported(t *testing.T) {
	assert.True(t, Supported(MimePlain))
	assert.True(t, Supported("TEXT/MARKDOWN"))
	assert.True(t, Supported(MimePDF))
	assert.True(t, Supported(MimeDOCX))
	assert.True(t, Supported(MimeXLSX))
	assert.False(t, Supported("application/zip"))
	assert.False(t, Supported(""))
}

const wordDocXML = `<?xml version="1.0" encoding="UTF-8"?>
<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main">
  <w:body>
    <w:p><w:r><w:t>Supplier concentration in one region.</w:t></w:r></w:p>
    <w:p><w:r><w:t>No secondary data center.</w:t></w:r></w:p>
  </w:body>
</w:document>`

func buildDOCX(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/document.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte(wordDocXML))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestExtractDOCX(t *testing.T) {
	e := New(2000)
	segs, err := e.Extract(context.Background(), doc(MimeDOCX), buildDOCX(t))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Contains(t, segs[0].Content, "Supplier concentration in one region.")
	assert.Contains(t, segs[0].Content, "No secondary data center.")
}

func TestExtractDOCXCorrupt(t *testing.T) {
	e := New(2000)
	_, err := e.Extract(context.Background(), doc(MimeDOCX), []byte("not a zip archive"))
	assert.ErrorIs(t, err, documents.ErrCorruptDocument)
}

func TestExtractDOCXMissingDocumentXML(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	f, err := zw.Create("word/styles.xml")
	require.NoError(t, err)
	_, err = f.Write([]byte("<styles/>"))
	require.NoError(t, err)
	require.NoError(t, zw.Close())

	e := New(2000)
	_, err = e.Extract(context.Background(), doc(MimeDOCX), buf.Bytes())
	assert.ErrorIs(t, err, documents.ErrCorruptDocument)
}

func buildXLSX(t *testing.T) []byte {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "Risk"))
	require.NoError(t, f.SetCellValue("Sheet1", "B1", "Owner"))
	require.NoError(t, f.SetCellValue("Sheet1", "A2", "Key person dependency"))
	require.NoError(t, f.SetCellValue("Sheet1", "B2", "HR"))
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf.Bytes()
}

func TestExtractXLSX(t *testing.T) {
	e := New(2000)
	segs, err := e.Extract(context.Background(), doc(MimeXLSX), buildXLSX(t))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Contains(t, segs[0].Content, "Sheet1")
	assert.Contains(t, segs[0].Content, "Risk\tOwner")
	assert.Contains(t, segs[0].Content, "Key person dependency\tHR")
}

func TestExtractXLSXCorrupt(t *testing.T) {
	e := New(2000)
	_, err := e.Extract(context.Background(), doc(MimeXLSX), []byte{0x00, 0x01, 0x02})
	assert.ErrorIs(t, err, documents.ErrCorruptDocument)
}

const tinyPDF = `%PDF-1.4
1 0 obj
<< /Length 64 >>
stream
BT (Risk register) Tj T* (Flooding in basement) Tj ET
endstream
endobj
%%EOF`

func TestExtractPDF(t *testing.T) {
	e := New(2000)
	segs, err := e.Extract(context.Background(), doc(MimePDF), []byte(tinyPDF))
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Contains(t, segs[0].Content, "Risk register")
	assert.Contains(t, segs[0].Content, "Flooding in basement")
}

func TestExtractPDFMissingHeader(t *testing.T) {
	e := New(2000)
	_, err := e.Extract(context.Background(), doc(MimePDF), []byte("plain bytes"))
	assert.ErrorIs(t, err, documents.ErrCorruptDocument)
}

func TestExtractHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := New(2000)
	_, err := e.Extract(ctx, doc(MimePlain), []byte("text"))
	assert.ErrorIs(t, err, context.Canceled)
}
