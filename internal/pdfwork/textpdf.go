package pdfwork

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// textToPDF renders a plain-text file as a minimal single-or-multi-page
// PDF so it can flow through the same merge pipeline as PDF-native
// documents: the merger must handle PDF-native inputs and at least
// plain-text inputs. pdfcpu merges and splits existing PDFs but has no
// text-to-PDF facility, so this is a deliberately minimal hand-rolled
// PDF object writer — see DESIGN.md's internal/pdfwork entry for why
// no third-party library covers this narrow a need.
func textToPDF(textPath, outPDFPath string) error {
	lines, err := readLines(textPath)
	if err != nil {
		return fmt.Errorf("text to pdf: read %s: %w", textPath, err)
	}

	const linesPerPage = 54
	var pages [][]string
	for i := 0; i < len(lines); i += linesPerPage {
		end := i + linesPerPage
		if end > len(lines) {
			end = len(lines)
		}
		pages = append(pages, lines[i:end])
	}
	if len(pages) == 0 {
		pages = [][]string{{}}
	}

	out, err := os.Create(outPDFPath)
	if err != nil {
		return fmt.Errorf("text to pdf: create %s: %w", outPDFPath, err)
	}
	defer out.Close()

	return writeMinimalPDF(out, pages)
}

func readLines(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines []string
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}
	return lines, sc.Err()
}

// writeMinimalPDF emits a PDF 1.4 document with one page per entry in
// pages, each line placed as left-aligned Helvetica 10pt text on a
// US-Letter page. It writes the smallest valid object graph (catalog,
// pages tree, one page + content stream per page, one shared font)
// rather than using a general-purpose PDF content model, since the
// only requirement is "text survives the merge," not layout fidelity.
func writeMinimalPDF(w *os.File, pages [][]string) error {
	var b strings.Builder
	var offsets []int

	write := func(s string) {
		offsets = append(offsets, b.Len())
		b.WriteString(s)
	}

	b.WriteString("%PDF-1.4\n")

	numPages := len(pages)

	// Object numbers are assigned in the exact order write() is called
	// below (two per page, then font, catalog, pages-tree), since the
	// xref table built from `offsets` depends on that order matching.
	pageObjNums := make([]int, numPages)
	contentObjNums := make([]int, numPages)
	nextObj := 1
	for i := range pages {
		pageObjNums[i] = nextObj
		nextObj++
		contentObjNums[i] = nextObj
		nextObj++
	}
	fontObj := nextObj
	catalogObj := fontObj + 1
	pagesObj := catalogObj + 1

	for i, lines := range pages {
		var content strings.Builder
		content.WriteString("BT /F1 10 Tf 72 740 Td 12 TL\n")
		for _, line := range lines {
			content.WriteString("(" + escapePDFString(line) + ") Tj T*\n")
		}
		content.WriteString("ET")
		contentStr := content.String()

		write(fmt.Sprintf("%d 0 obj\n<< /Type /Page /Parent %d 0 R /Resources << /Font << /F1 %d 0 R >> >> /MediaBox [0 0 612 792] /Contents %d 0 R >>\nendobj\n",
			pageObjNums[i], pagesObj, fontObj, contentObjNums[i]))
		write(fmt.Sprintf("%d 0 obj\n<< /Length %d >>\nstream\n%s\nendstream\nendobj\n",
			contentObjNums[i], len(contentStr), contentStr))
	}

	write(fmt.Sprintf("%d 0 obj\n<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>\nendobj\n", fontObj))
	write(fmt.Sprintf("%d 0 obj\n<< /Type /Catalog /Pages %d 0 R >>\nendobj\n", catalogObj, pagesObj))

	kids := make([]string, numPages)
	for i, n := range pageObjNums {
		kids[i] = fmt.Sprintf("%d 0 R", n)
	}
	write(fmt.Sprintf("%d 0 obj\n<< /Type /Pages /Kids [%s] /Count %d >>\nendobj\n", pagesObj, strings.Join(kids, " "), numPages))

	xrefOffset := b.Len()
	totalObjs := pagesObj
	b.WriteString(fmt.Sprintf("xref\n0 %d\n", totalObjs+1))
	b.WriteString("0000000000 65535 f \n")
	for i := 1; i <= totalObjs; i++ {
		b.WriteString(fmt.Sprintf("%010d 00000 n \n", offsets[i-1]))
	}
	b.WriteString(fmt.Sprintf("trailer\n<< /Size %d /Root %d 0 R >>\nstartxref\n%d\n%%%%EOF", totalObjs+1, catalogObj, xrefOffset))

	_, err := w.WriteString(b.String())
	return err
}

func escapePDFString(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `(`, `\(`, `)`, `\)`)
	return r.Replace(s)
}
