package output

import (
	"context"
	"html"
	"io"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/JohannesKaufmann/html-to-markdown/plugin"
)

// MarkdownSink renders rows as a GitHub-flavored Markdown table.
type MarkdownSink struct {
	Path string
}

// Write implements Sink.
func (s *MarkdownSink) Write(ctx context.Context, rows []Row, cols []Column) (string, error) {
	mdStr, err := RenderMarkdown(rows, cols)
	if err != nil {
		return "", err
	}
	err = writeFile(s.Path, func(w io.Writer) error {
		_, err := io.WriteString(w, mdStr+"\n")
		return err
	})
	if err != nil {
		return "", err
	}
	return s.Path, nil
}

// RenderMarkdown builds an HTML table of rows and converts it to Markdown.
func RenderMarkdown(rows []Row, cols []Column) (string, error) {
	var sb strings.Builder
	sb.WriteString("<table><thead><tr>")
	for _, h := range Headers(cols) {
		sb.WriteString("<th>" + html.EscapeString(h) + "</th>")
	}
	sb.WriteString("</tr></thead><tbody>")
	for _, row := range rows {
		sb.WriteString("<tr>")
		for _, cell := range Record(row, cols) {
			sb.WriteString("<td>" + html.EscapeString(cell) + "</td>")
		}
		sb.WriteString("</tr>")
	}
	sb.WriteString("</tbody></table>")

	converter := md.NewConverter("", true, nil)
	converter.Use(plugin.GitHubFlavored())

	return converter.ConvertString(sb.String())
}
