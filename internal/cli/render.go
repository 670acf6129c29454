package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/glamour"
	"github.com/deepgram/chatform/internal/api/handlers/files"
	"github.com/deepgram/chatform/internal/logger"
	"github.com/deepgram/chatform/internal/services/rag"
	"github.com/rs/zerolog/log"
)

type markdownRenderer struct {
	term *glamour.TermRenderer
}

// newMarkdownRenderer falls back to plain text when glamour cannot be set up.
func newMarkdownRenderer() *markdownRenderer {
	term, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		log.Warn().Str("component", logger.CLIENT).Err(err).Msg("Markdown rendering unavailable")
		return &markdownRenderer{}
	}
	return &markdownRenderer{term: term}
}

func (r *markdownRenderer) Render(content string) string {
	if r.term != nil {
		if out, err := r.term.Render(content); err == nil {
			return out
		}
	}
	if !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content
}

func printStatus(w io.Writer, status *rag.IndexStatus) {
	if !status.IsIndexed {
		fmt.Fprintln(w, "No document is indexed.")
		return
	}
	id := ""
	if status.DocumentID != nil {
		id = *status.DocumentID
	}
	if status.FileInfo != nil {
		fmt.Fprintf(w, "Indexed %s (%d bytes) as %s with %d chunks, uploaded %s.\n",
			status.FileInfo.Filename, status.FileInfo.SizeBytes, id, status.ChunksCount,
			status.FileInfo.UploadedAt.Local().Format("2006-01-02 15:04"))
		return
	}
	fmt.Fprintf(w, "Indexed document %s with %d chunks.\n", id, status.ChunksCount)
}

func printHistory(w io.Writer, resp *files.HistoryResponse) {
	if len(resp.FileHistory) == 0 {
		fmt.Fprintln(w, "No files have been uploaded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "\tFILE\tTYPE\tCHUNKS\tUPLOADED")
	for _, f := range resp.FileHistory {
		marker := ""
		if f.IsCurrent {
			marker = "*"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", marker, f.Filename, f.FileType, f.ChunksCount,
			f.UploadTimestamp.Local().Format("2006-01-02 15:04"))
	}
	tw.Flush()
}
