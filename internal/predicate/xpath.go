package predicate

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// xpathExtract returns the text content of the first node matched by
// selector, or "" if the body does not parse as XML or nothing matches.
// Grounded on go-tartuffe's xpath.selector handling, which uses the same
// antchfx pairing for XML predicate extraction.
func xpathExtract(body, selector string) string {
	doc, err := xmlquery.Parse(strings.NewReader(body))
	if err != nil {
		return ""
	}
	node := xmlquery.FindOne(doc, selector)
	if node == nil {
		return ""
	}
	return node.InnerText()
}
