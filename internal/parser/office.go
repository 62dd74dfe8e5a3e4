package parser

import (
	"archive/zip"
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"path"
	"sort"
	"strconv"
	"strings"
)

// parsePPTX reads the a:t runs of every slide, one line per paragraph, slides in order.
func parsePPTX(data []byte) (string, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", err
	}

	type slide struct {
		num  int
		file *zip.File
	}
	var slides []slide
	for _, file := range zr.File {
		dir, name := path.Split(file.Name)
		if dir != "ppt/slides/" || !strings.HasPrefix(name, "slide") || !strings.HasSuffix(name, ".xml") {
			continue
		}
		num, err := strconv.Atoi(strings.TrimSuffix(strings.TrimPrefix(name, "slide"), ".xml"))
		if err != nil {
			continue
		}
		slides = append(slides, slide{num: num, file: file})
	}
	if len(slides) == 0 {
		return "", errors.New("no slides found")
	}
	sort.Slice(slides, func(i, j int) bool { return slides[i].num < slides[j].num })

	var text strings.Builder
	for _, s := range slides {
		rc, err := s.file.Open()
		if err != nil {
			return "", err
		}
		slideText, err := xmlParagraphText(rc)
		rc.Close()
		if err != nil {
			return "", err
		}
		text.WriteString(slideText)
		text.WriteString("\n")
	}
	return text.String(), nil
}

// xmlParagraphText collects the character data of <t> runs (w:t in WordprocessingML,
// a:t in DrawingML) and ends a line at every closing <p>.
func xmlParagraphText(r io.Reader) (string, error) {
	dec := xml.NewDecoder(r)
	var (
		text   strings.Builder
		inText bool
		line   strings.Builder
	)
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			switch t.Name.Local {
			case "t":
				inText = true
			case "tab":
				line.WriteString("\t")
			case "br":
				line.WriteString(" ")
			}
		case xml.EndElement:
			switch t.Name.Local {
			case "t":
				inText = false
			case "p":
				if s := strings.TrimSpace(line.String()); s != "" {
					text.WriteString(s)
					text.WriteString("\n")
				}
				line.Reset()
			}
		case xml.CharData:
			if inText {
				line.Write(t)
			}
		}
	}
	if s := strings.TrimSpace(line.String()); s != "" {
		text.WriteString(s)
		text.WriteString("\n")
	}
	return text.String(), nil
}
