// Package reviews groups the driven.ReviewSource adapters.
//
// Sources return raw reviews; normalisation, ordering and truncation to the
// run limit happen in the ingestion service so every source yields the same
// canonical input.
//
//   - file: a local JSON array of reviews
//   - outscraper: Trustpilot reviews through the Outscraper REST API
package reviews
