// Package activesecurity implements the randomized-target checksum that
// lets a client detect, and blame, a keyserver that answers a batch
// inconsistently rather than honestly applying its committee share.
package activesecurity

import (
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/polynomial"
	"github.com/dnascreen/doprf/pkg/ristretto"
)

// Key holds the public commitments derived once, centrally, from the
// committee secret and its shares. It is read-only for the rest of the
// protocol: every randomized target for every batch is derived from it.
type Key struct {
	publicKey        ristretto.Point
	squaredPublicKey ristretto.Point
	commitments      map[party.ID]ristretto.Point
}

// NewKey computes the active-security key from the committee secret and the
// shares handed to each keyserver. Both secret and shares are known only to
// the party performing setup (typically the same centralized dealer that
// generated the shares, see pkg/dealer); the resulting Key contains no
// secret material and is safe to publish.
func NewKey(secret ristretto.Scalar, shares map[party.ID]ristretto.Scalar) Key {
	publicKey := ristretto.MulBase(secret)
	squaredPublicKey := publicKey.Mul(secret)

	commitments := make(map[party.ID]ristretto.Point, len(shares))
	for id, share := range shares {
		commitments[id] = publicKey.Mul(share)
	}

	return Key{
		publicKey:        publicKey,
		squaredPublicKey: squaredPublicKey,
		commitments:      commitments,
	}
}

// PublicKey returns s·G, the committee's public point.
func (k Key) PublicKey() ristretto.Point {
	return k.publicKey
}

// SquaredPublicKey returns s²·G.
func (k Key) SquaredPublicKey() ristretto.Point {
	return k.squaredPublicKey
}

// Commitments returns a copy of the per-party commitment map (share_i·PublicKey).
func (k Key) Commitments() map[party.ID]ristretto.Point {
	out := make(map[party.ID]ristretto.Point, len(k.commitments))
	for id, p := range k.commitments {
		out[id] = p
	}
	return out
}

// FromParts reconstructs a Key from previously-serialized components,
// without requiring the committee secret.
func FromParts(publicKey, squaredPublicKey ristretto.Point, commitments map[party.ID]ristretto.Point) Key {
	cp := make(map[party.ID]ristretto.Point, len(commitments))
	for id, p := range commitments {
		cp[id] = p
	}
	return Key{publicKey: publicKey, squaredPublicKey: squaredPublicKey, commitments: cp}
}

// RandomizedTarget derives the per-batch checksum target T_ρ from the
// random modifier ρ bound to this batch's exact query set.
func (k Key) RandomizedTarget(rho ristretto.Scalar) RandomizedTarget {
	return RandomizedTarget{
		rho:    rho,
		key:    k,
		target: k.squaredPublicKey.Mul(rho),
	}
}

// RandomizedTarget is the per-batch checksum anchor derived from an
// ActiveSecurityKey and a random modifier ρ.
type RandomizedTarget struct {
	rho    ristretto.Scalar
	key    Key
	target ristretto.Point
}

// Rho returns the random modifier this target was derived from.
func (t RandomizedTarget) Rho() ristretto.Scalar {
	return t.rho
}

// Key returns the active-security key this target was derived from.
func (t RandomizedTarget) Key() Key {
	return t.key
}

// TargetFromParts reconstructs a RandomizedTarget from previously-serialized
// components.
func TargetFromParts(rho ristretto.Scalar, key Key) RandomizedTarget {
	return key.RandomizedTarget(rho)
}

// ChecksumPointForValidation returns the point to be re-blinded as the
// synthetic checksum query appended after the batch's windows, given the batch's accumulated
// verifier sum S = Σ v_m·H(m).
func (t RandomizedTarget) ChecksumPointForValidation(sum ristretto.Point) ristretto.Point {
	return t.key.publicKey.Mul(t.rho).Sub(sum)
}

// ValidateResponses reports whether the aggregate verifier point (summed
// across every window plus the checksum query) matches the committed
// target. A mismatch means at least one keyserver in the responding
// quorums behaved inconsistently across the batch.
func (t RandomizedTarget) ValidateResponses(verifier ristretto.Point) bool {
	return verifier.Equal(t.target)
}

// IsKeyserverResponseValid decides whether a single keyserver's aggregated,
// unblinded contribution across the whole batch (sum of
// blinding⁻¹·verificationFactor·HashPart over every query it answered) is
// consistent with the commitment the active-security key holds for it.
func (t RandomizedTarget) IsKeyserverResponseValid(quorum party.Set, id party.ID, individualSum ristretto.Point) bool {
	commitment, ok := t.key.commitments[id]
	if !ok {
		return false
	}
	coeff := polynomial.LagrangeCoefficient(quorum, id)
	expected := commitment.Mul(t.rho.Mul(coeff))
	return individualSum.Equal(expected)
}
