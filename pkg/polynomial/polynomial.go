// Package polynomial implements the Lagrange interpolation core shared by
// keyshare generation and quorum reconstruction.
package polynomial

import (
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

// Polynomial is a dense polynomial over the Ristretto255 scalar field,
// stored lowest-degree coefficient first.
type Polynomial struct {
	coeffs []ristretto.Scalar
}

// New builds a degree-(len(coeffs)-1) polynomial from explicit coefficients.
// coeffs[0] is the constant term (the secret, for a sharing polynomial).
func New(coeffs []ristretto.Scalar) Polynomial {
	cp := make([]ristretto.Scalar, len(coeffs))
	copy(cp, coeffs)
	return Polynomial{coeffs: cp}
}

// Evaluate computes the polynomial's value at x using Horner's method.
func (p Polynomial) Evaluate(x ristretto.Scalar) ristretto.Scalar {
	if len(p.coeffs) == 0 {
		return ristretto.ZeroScalar()
	}
	acc := p.coeffs[len(p.coeffs)-1]
	for i := len(p.coeffs) - 2; i >= 0; i-- {
		acc = acc.Mul(x).Add(p.coeffs[i])
	}
	return acc
}

// LagrangeCoefficient computes the Lagrange basis coefficient for id within
// quorum, evaluated at x=0: the product over every other member j of
// j / (j - id).
func LagrangeCoefficient(quorum party.Set, id party.ID) ristretto.Scalar {
	idScalar := id.Scalar()
	numerator := ristretto.OneScalar()
	denominator := ristretto.OneScalar()

	for _, other := range quorum.IDs() {
		if other == id {
			continue
		}
		otherScalar := other.Scalar()
		numerator = numerator.Mul(otherScalar)
		denominator = denominator.Mul(otherScalar.Sub(idScalar))
	}

	return numerator.Mul(denominator.Invert())
}

// LagrangeCoefficients computes the basis coefficient for every member of
// quorum in one pass, each evaluated at x=0. The coefficients always sum to
// one, since they interpolate the constant function f(x)=1.
func LagrangeCoefficients(quorum party.Set) map[party.ID]ristretto.Scalar {
	ids := quorum.IDs()
	out := make(map[party.ID]ristretto.Scalar, len(ids))
	for _, id := range ids {
		out[id] = LagrangeCoefficient(quorum, id)
	}
	return out
}

// EvaluateAtPoints treats controlPoints as the values of an implicit
// degree-(len-1) polynomial f at x=0,1,...,len-1, and evaluates f at x using
// Lagrange interpolation. Used by keyshare generation, where the sharing
// polynomial is defined by a handful of known points rather than explicit
// coefficients.
func EvaluateAtPoints(controlPoints []ristretto.Scalar, x ristretto.Scalar) ristretto.Scalar {
	acc := ristretto.ZeroScalar()
	for i, yi := range controlPoints {
		xi := ristretto.ScalarFromUint64(uint64(i))
		numerator := ristretto.OneScalar()
		denominator := ristretto.OneScalar()
		for j := range controlPoints {
			if j == i {
				continue
			}
			xj := ristretto.ScalarFromUint64(uint64(j))
			numerator = numerator.Mul(x.Sub(xj))
			denominator = denominator.Mul(xi.Sub(xj))
		}
		term := yi.Mul(numerator).Mul(denominator.Invert())
		acc = acc.Add(term)
	}
	return acc
}
