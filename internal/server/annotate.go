package server

import (
	"bytes"
	"fmt"
	"html"
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/nao1215/linkmark/internal/model"
	"github.com/nao1215/linkmark/internal/pipeline"
	"github.com/nao1215/linkmark/internal/rewriter"
)

const markdownPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>%s</title>
<link rel="stylesheet" href="/linkmark/style.css">
</head>
<body>
%s</body>
</html>
`

// annotate rewrites HTML responses and renders Markdown files. Only
// server-mode options annotate, and only for request paths inside the
// site's path scopes. Otherwise HTML passes through and Markdown is
// rendered plainly.
func (s *Server) annotate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		opts, err := s.provider.Options(r.Context())
		if err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		active := opts.Enabled && opts.Mode == model.ModeServer && opts.InScope(r.URL.Path)
		if !active {
			opts.Enabled = false
		}
		step := pipeline.NewRewriteStep(s.provider.Site(), opts, s.icons, rewriter.WithLogger(s.logger))

		if pipeline.KindOf(r.URL.Path) == pipeline.KindMarkdown {
			s.serveMarkdown(w, r, next, step)
			return
		}
		if !active {
			next.ServeHTTP(w, r)
			return
		}

		// The rewritten body differs from the file on disk, so partial and
		// conditional requests cannot be answered from it.
		inner := r.Clone(r.Context())
		inner.Header.Del("Range")
		inner.Header.Del("If-Range")
		inner.Header.Del("If-Modified-Since")
		inner.Header.Del("If-None-Match")
		if inner.Method == http.MethodHead {
			inner.Method = http.MethodGet
		}

		bw := &bufferedWriter{ResponseWriter: w, head: r.Method == http.MethodHead}
		next.ServeHTTP(bw, inner)
		if !bw.buffering {
			return
		}

		doc := pipeline.NewDocument(r.URL.Path, "")
		doc.Content = bw.buf.String()
		if err := step.Do(r.Context(), doc); err != nil {
			s.writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeBody(w, r, bw.status, doc.Output)
	})
}

func (s *Server) serveMarkdown(w http.ResponseWriter, r *http.Request, next http.Handler, step *pipeline.RewriteStep) {
	name := path.Clean("/" + r.URL.Path)
	f, err := s.root.Open(name)
	if err != nil {
		next.ServeHTTP(w, r)
		return
	}
	defer f.Close()
	if fi, err := f.Stat(); err != nil || fi.IsDir() {
		next.ServeHTTP(w, r)
		return
	}

	content, err := io.ReadAll(f)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, fmt.Errorf("failed to read %s: %w", name, err))
		return
	}

	doc := pipeline.NewDocument(name, "")
	doc.Content = string(content)
	if err := step.Do(r.Context(), doc); err != nil {
		s.writeError(w, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	page := fmt.Sprintf(markdownPage, html.EscapeString(path.Base(name)), doc.Output)
	writeBody(w, r, http.StatusOK, page)
}

func writeBody(w http.ResponseWriter, r *http.Request, status int, body string) {
	h := w.Header()
	h.Del("Last-Modified")
	h.Del("ETag")
	h.Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(status)
	if r.Method != http.MethodHead {
		_, _ = io.WriteString(w, body)
	}
}

// bufferedWriter holds back 200 HTML responses so they can be rewritten.
// Everything else is forwarded as it is written.
type bufferedWriter struct {
	http.ResponseWriter
	buf         bytes.Buffer
	status      int
	wroteHeader bool
	buffering   bool
	// head drops forwarded bodies of HEAD requests served as GET.
	head bool
}

func (b *bufferedWriter) WriteHeader(status int) {
	if b.wroteHeader {
		return
	}
	b.wroteHeader = true
	b.status = status
	if status == http.StatusOK && isHTML(b.Header().Get("Content-Type")) {
		b.buffering = true
		return
	}
	b.ResponseWriter.WriteHeader(status)
}

func (b *bufferedWriter) Write(p []byte) (int, error) {
	if !b.wroteHeader {
		if b.Header().Get("Content-Type") == "" {
			b.Header().Set("Content-Type", http.DetectContentType(p))
		}
		b.WriteHeader(http.StatusOK)
	}
	switch {
	case b.buffering:
		return b.buf.Write(p)
	case b.head:
		return len(p), nil
	}
	return b.ResponseWriter.Write(p)
}

func isHTML(contentType string) bool {
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.HasPrefix(strings.ToLower(contentType), "text/html")
	}
	return mt == "text/html" || mt == "application/xhtml+xml"
}
