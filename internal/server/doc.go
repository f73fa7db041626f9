// Package server serves a directory of site content over HTTP with external
// links annotated.
//
// In server mode HTML responses are buffered and passed through the static
// rewriter before they reach the client, and Markdown files are rendered to
// annotated HTML. In client mode content is served untouched; the bootstrap
// payload, the stylesheet and the icons under /linkmark/ let a live DOM
// processor in the page do the annotation.
//
// Routes:
//
//	GET    /linkmark/bootstrap.json   bootstrap payload
//	GET    /linkmark/style.css        generated stylesheet
//	GET    /linkmark/icons/{name}.svg bundled icon
//	GET    /linkmark/settings         effective options
//	PUT    /linkmark/settings         store options (admin token required)
//	DELETE /linkmark/settings         drop stored options (admin token required)
//	GET    /healthz                   liveness
//	GET    /*                         site content
package server
