// Package normalisers provides implementations of the ReviewNormaliser
// interface. A normaliser canonicalises raw review records from any source
// into immutable domain reviews with a stable content hash.
package normalisers
