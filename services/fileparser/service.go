package fileparser

import (
	"archive/zip"
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"io"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pkg/errors"
	"github.com/xuri/excelize/v2"

	"github.com/procurehq/rfpstack/dto"
	"github.com/procurehq/rfpstack/interfaces"
	er "github.com/procurehq/rfpstack/internal/errors"
	"github.com/procurehq/rfpstack/internal/logger"
)

type fileParserService struct {
	log logger.Logger
}

func NewFileParserService(log logger.Logger) interfaces.FileParserService {
	return &fileParserService{log: log}
}

type fileKind int

const (
	kindUnknown fileKind = iota
	kindPDF
	kindWord
	kindSpreadsheet
	kindPlainText
	kindImage
)

// detectKind prefers the declared content type and falls back to the filename
// extension when the type is absent or generic
func detectKind(filename, contentType string) fileKind {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if idx := strings.Index(ct, ";"); idx >= 0 {
		ct = ct[:idx]
	}

	switch {
	case ct == "application/pdf":
		return kindPDF
	case ct == "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		ct == "application/msword":
		return kindWord
	case ct == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		ct == "application/vnd.ms-excel":
		return kindSpreadsheet
	case ct == "text/csv", ct == "text/plain":
		return kindPlainText
	case strings.HasPrefix(ct, "image/"):
		return kindImage
	}

	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return kindPDF
	case ".docx", ".doc":
		return kindWord
	case ".xlsx", ".xls":
		return kindSpreadsheet
	case ".csv", ".txt":
		return kindPlainText
	case ".png", ".jpg", ".jpeg", ".gif", ".webp":
		return kindImage
	}

	return kindUnknown
}

// Parse converts attachment bytes into text or an image payload. Unknown kinds
// return nil without an error; malformed bytes of a recognized kind fail.
func (s *fileParserService) Parse(data []byte, filename, contentType string) (*dto.ParsedAttachment, error) {
	kind := detectKind(filename, contentType)
	result := &dto.ParsedAttachment{
		Filename:    filename,
		ContentType: contentType,
	}

	switch kind {
	case kindPDF:
		text, err := extractPDFText(data)
		if err != nil {
			return nil, errors.Wrapf(er.ErrCorruptAttachment, "pdf %s: %v", filename, err)
		}
		result.Text = text
	case kindWord:
		text, err := extractWordText(data)
		if err != nil {
			return nil, errors.Wrapf(er.ErrCorruptAttachment, "word document %s: %v", filename, err)
		}
		result.Text = text
	case kindSpreadsheet:
		text, err := extractSpreadsheetText(data)
		if err != nil {
			return nil, errors.Wrapf(er.ErrCorruptAttachment, "spreadsheet %s: %v", filename, err)
		}
		result.Text = text
	case kindPlainText:
		result.Text = string(data)
	case kindImage:
		result.IsImage = true
		result.Base64Data = base64.StdEncoding.EncodeToString(data)
	default:
		s.log.Debugf("skipping attachment %s with unsupported type %s", filename, contentType)
		return nil, nil
	}

	return result, nil
}

func extractPDFText(data []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	textReader, err := reader.GetPlainText()
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// extractWordText pulls the raw text runs out of the docx document part
func extractWordText(data []byte) (string, error) {
	zipReader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	var docFile *zip.File
	for _, f := range zipReader.File {
		if f.Name == "word/document.xml" {
			docFile = f
			break
		}
	}
	if docFile == nil {
		return "", errors.New("missing word/document.xml")
	}

	rc, err := docFile.Open()
	if err != nil {
		return "", err
	}
	defer rc.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(rc)
	inText := false
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				inText = true
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				sb.WriteString("\n")
			}
		case xml.CharData:
			if inText {
				sb.Write(t)
			}
		}
	}

	return strings.TrimSpace(sb.String()), nil
}

// extractSpreadsheetText serializes every sheet into a delimited text table,
// with the sheet name as a section header
func extractSpreadsheetText(data []byte) (string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var sb strings.Builder
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return "", err
		}
		sb.WriteString("=== " + sheet + " ===\n")
		for _, row := range rows {
			sb.WriteString(strings.Join(row, " | "))
			sb.WriteString("\n")
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
