// Package html turns scraped review markup into plain text. Review
// platforms relayed through scraping APIs sometimes return bodies with
// <br> tags, paragraphs and escaped entities; ToText reduces those to
// the text a reader would see before the review normaliser runs.
package html
