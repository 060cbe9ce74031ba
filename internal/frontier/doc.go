// Package frontier holds the set of addresses claimed during a crawl. A
// claim is an atomic insert-if-absent: exactly one caller wins each address,
// which is what keeps a page from being fetched twice.
package frontier
