// Package classifier decides whether an anchor's href points off-site.
//
// Classification is a pure function of the href, the anchor's class tokens,
// the site identity and the link configuration. Rules are evaluated in a
// fixed order and the first match wins:
//
//  1. empty, fragment-only and non-HTTP scheme links are Special
//  2. relative links (after resolving "//host" with the site scheme) are Internal
//  3. unparseable URLs are Internal
//  4. links to the site host (www-insensitive, port ignored) are Internal
//  5. links carrying an excluded class are ExcludedByClass
//  6. links to an excluded domain or one of its subdomains are ExcludedByDomain
//  7. everything else is External
//
// Nothing in this package returns an error: malformed input always degrades
// to a classification that is never annotated.
package classifier
