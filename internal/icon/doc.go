// Package icon renders the markup inserted into annotated anchors and the
// stylesheet that styles it.
//
// Four icon types are supported:
//   - svg: one of the bundled SVG files (icon-external, icon-external-arrow,
//     icon-external-simple) with the marker class injected on the root element
//   - fontawesome: an <i> element carrying the configured classes
//   - custom: operator supplied markup wrapped in a marker span
//   - dashicon: a WordPress dashicons span (deprecated)
//
// Class and name parameters are escaped. Custom markup is emitted verbatim
// unless a Sanitizer is configured.
package icon
