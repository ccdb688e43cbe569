// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package document normalizes and checks Brazilian government identifiers.

A document is stored and transmitted as digits only. Its length tells the
two kinds apart:

  - 11 digits: CPF, an individual.
  - 14 digits: CNPJ, a company registration.

Shape checks (length only) are what login enforces. Checksum rules are an
opt-in strict mode, and the reserved administrator document [Sentinel]
always passes them.
*/
package document

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Document lengths.
const (
	IndividualLength = 11
	CompanyLength    = 14
)

// Sentinel is the reserved administrator document. It fails the CPF
// checksum rules but must always be accepted.
const Sentinel = "00000000000"

// Kind classifies a normalized document.
type Kind int

const (
	KindUnknown Kind = iota
	KindIndividual
	KindCompany
)

// String returns the lowercase name of the kind.
func (k Kind) String() string {
	switch k {
	case KindIndividual:
		return "individual"
	case KindCompany:
		return "company"
	default:
		return "unknown"
	}
}

var (
	cnpjFirstWeights  = []int{5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
	cnpjSecondWeights = []int{6, 5, 4, 3, 2, 9, 8, 7, 6, 5, 4, 3, 2}
)

// # Normalization

// Normalize folds compatibility characters (full-width digits) and keeps ASCII digits only.
//
// Example:
//
//	document.Normalize("529.982.247-25") // "52998224725"
func Normalize(raw string) string {
	folded := norm.NFKC.String(raw)

	var builder strings.Builder
	builder.Grow(len(folded))
	for _, r := range folded {
		if r >= '0' && r <= '9' {
			builder.WriteRune(r)
		}
	}
	return builder.String()
}

// Classify returns the kind of a normalized document based on its length.
func Classify(doc string) Kind {
	switch len(doc) {
	case IndividualLength:
		return KindIndividual
	case CompanyLength:
		return KindCompany
	default:
		return KindUnknown
	}
}

// IsCompany reports whether doc has the company length.
func IsCompany(doc string) bool {
	return len(doc) == CompanyLength
}

// IsIndividual reports whether doc has the individual length.
func IsIndividual(doc string) bool {
	return len(doc) == IndividualLength
}

// ValidShape reports whether doc is all digits with an individual or company length.
func ValidShape(doc string) bool {
	if Classify(doc) == KindUnknown {
		return false
	}
	for i := 0; i < len(doc); i++ {
		if doc[i] < '0' || doc[i] > '9' {
			return false
		}
	}
	return true
}

// # Checksums

// Valid applies the checksum rules matching the document's kind.
func Valid(doc string) bool {
	switch Classify(doc) {
	case KindIndividual:
		return ValidCPF(doc)
	case KindCompany:
		return ValidCNPJ(doc)
	default:
		return false
	}
}

// ValidCPF checks the two CPF verification digits.
func ValidCPF(doc string) bool {
	if doc == Sentinel {
		return true
	}
	if !IsIndividual(doc) || !ValidShape(doc) || repeated(doc) {
		return false
	}

	digits := toDigits(doc)
	for _, position := range []int{9, 10} {
		sum := 0
		for i := 0; i < position; i++ {
			sum += digits[i] * (position + 1 - i)
		}
		check := (sum * 10) % 11
		if check == 10 {
			check = 0
		}
		if check != digits[position] {
			return false
		}
	}
	return true
}

// ValidCNPJ checks the two CNPJ verification digits.
func ValidCNPJ(doc string) bool {
	if !IsCompany(doc) || !ValidShape(doc) || repeated(doc) {
		return false
	}

	digits := toDigits(doc)
	for position, weights := range map[int][]int{12: cnpjFirstWeights, 13: cnpjSecondWeights} {
		sum := 0
		for i, weight := range weights {
			sum += digits[i] * weight
		}
		check := 0
		if remainder := sum % 11; remainder >= 2 {
			check = 11 - remainder
		}
		if check != digits[position] {
			return false
		}
	}
	return true
}

// # Presentation

// Format renders a normalized document with the usual punctuation.
// Documents of unknown kind are returned unchanged.
func Format(doc string) string {
	switch Classify(doc) {
	case KindIndividual:
		return doc[0:3] + "." + doc[3:6] + "." + doc[6:9] + "-" + doc[9:]
	case KindCompany:
		return doc[0:2] + "." + doc[2:5] + "." + doc[5:8] + "/" + doc[8:12] + "-" + doc[12:]
	default:
		return doc
	}
}

// Mask hides the middle digits so a document can appear in logs and audit rows.
func Mask(doc string) string {
	switch Classify(doc) {
	case KindIndividual:
		return doc[0:3] + ".***.***-" + doc[9:]
	case KindCompany:
		return doc[0:2] + ".***.***/****-" + doc[12:]
	default:
		return "***"
	}
}

func repeated(doc string) bool {
	return strings.Count(doc, doc[:1]) == len(doc)
}

func toDigits(doc string) []int {
	digits := make([]int, len(doc))
	for i := 0; i < len(doc); i++ {
		digits[i] = int(doc[i] - '0')
	}
	return digits
}
