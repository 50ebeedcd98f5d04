package inbox

import (
	"errors"
	"fmt"
	"io"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/emersion/go-message"
	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
)

const maxPartSize = 1 << 20

var (
	tagRe        = regexp.MustCompile(`<[^>]*>`)
	styleRe      = regexp.MustCompile(`(?is)<(?:style|script)[^>]*>.*?</(?:style|script)>`)
	spaceRe      = regexp.MustCompile(`[ \t]+`)
	blankLinesRe = regexp.MustCompile(`\n{3,}`)
)

// ParseBody reads an RFC 5322 message and returns its text. text/plain wins;
// otherwise the text/html part is converted. Attachments are ignored.
func ParseBody(r io.Reader) (string, error) {
	mr, err := mail.CreateReader(r)
	if err != nil && !message.IsUnknownCharset(err) {
		return "", fmt.Errorf("create mail reader: %w", err)
	}

	var plain, html string
	for {
		p, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil && !message.IsUnknownCharset(err) {
			return "", fmt.Errorf("read next part: %w", err)
		}
		if p == nil {
			continue
		}
		h, ok := p.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}
		contentType, _, _ := h.ContentType()
		switch {
		case strings.HasPrefix(contentType, "text/plain") && plain == "":
			if plain, err = readAll(p.Body); err != nil {
				return "", fmt.Errorf("read text part: %w", err)
			}
		case strings.HasPrefix(contentType, "text/html") && html == "":
			if html, err = readAll(p.Body); err != nil {
				return "", fmt.Errorf("read html part: %w", err)
			}
		}
	}

	if strings.TrimSpace(plain) != "" {
		return normalize(plain), nil
	}
	if strings.TrimSpace(html) != "" {
		return normalize(HTMLToText(html)), nil
	}
	return "", errors.New("no text body")
}

// HTMLToText converts an HTML body to markdown, falling back to stripping
// tags when the converter fails or yields nothing.
func HTMLToText(html string) string {
	if html == "" {
		return ""
	}
	converted, err := md.NewConverter("", true, nil).ConvertString(html)
	if err != nil || strings.TrimSpace(converted) == "" {
		return stripHTMLTags(html)
	}
	return converted
}

// stripHTMLTags removes tags and decodes the common entities.
func stripHTMLTags(s string) string {
	s = styleRe.ReplaceAllString(s, "")
	s = tagRe.ReplaceAllString(s, " ")
	s = strings.NewReplacer(
		"&amp;", "&",
		"&lt;", "<",
		"&gt;", ">",
		"&quot;", `"`,
		"&#39;", "'",
		"&nbsp;", " ",
	).Replace(s)
	return strings.TrimSpace(spaceRe.ReplaceAllString(s, " "))
}

func normalize(s string) string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	lines := strings.Split(s, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(spaceRe.ReplaceAllString(l, " "))
	}
	s = strings.Join(lines, "\n")
	return strings.TrimSpace(blankLinesRe.ReplaceAllString(s, "\n\n"))
}
