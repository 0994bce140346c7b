// Package zkvm models the recursive proof chain that lets a client hand
// the HDB a single succinct guarantee instead of raw,
// individually-trusted reconstruction math: a hash-proof per client request,
// a checksum-proof binding the batch's active-security target, and a
// verification-proof that checks both and replays incorporation,
// reconstruction, and active-security validation entirely inside the guest.
//
// A production system executes these guests inside an SP1 zkVM and ships
// succinct recursive SNARKs; this package treats the zkVM as a deterministic
// black box, exactly as a guest program is itself a pure function of its
// witness. A Proof here is sealed with a digest over its committed public
// values, modeling the vkey/public-values binding an SP1 verifier checks
// (sha256 of public values) rather than an actual SNARK.
package zkvm

import (
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/query"
	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
)

// GuestID names which guest program sealed a Proof. A verifier checks a
// Proof against the GuestID it expects, the same way a real verifier is
// handed a specific verification key.
type GuestID string

const (
	GuestHashProof         GuestID = "hash-proof"
	GuestChecksumProof     GuestID = "checksum-proof"
	GuestVerificationProof GuestID = "verification-proof"
)

// ErrProofInvalid is returned when a Proof's digest does not match its own
// public values, or when a Proof is checked against a GuestID it was not
// sealed for.
var ErrProofInvalid = errors.New("zkvm: proof does not match its public values")

// ErrBatchMismatch is returned when a hash-proof or checksum-proof's
// committed queries do not match the batch the verification-proof guest was
// asked to reconstruct. Without this check a verifier would accept any pair
// of validly-sealed sub-proofs regardless of which batch they were sealed
// for, trusting the witness's StateSet instead of the proofs themselves.
var ErrBatchMismatch = errors.New("zkvm: sub-proof does not commit to this batch's queries")

// Proof is a guest program's committed public values, sealed with a digest
// that binds them to the specific guest that produced them.
type Proof struct {
	GuestID      GuestID
	PublicValues []byte
	Digest       [32]byte
}

func seal(id GuestID, publicValues any) (Proof, error) {
	values, err := cbor.Marshal(publicValues)
	if err != nil {
		return Proof{}, fmt.Errorf("zkvm: encoding public values: %w", err)
	}
	digest := digestFor(id, values)
	return Proof{GuestID: id, PublicValues: values, Digest: digest}, nil
}

func digestFor(id GuestID, values []byte) [32]byte {
	h := sha256.New()
	h.Write([]byte(id))
	h.Write(values)
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return digest
}

// Verify checks that p's digest matches its own public values, and that it
// was sealed for the expected guest.
func (p Proof) Verify(expected GuestID) error {
	if p.GuestID != expected {
		return fmt.Errorf("%w: expected %s, got %s", ErrProofInvalid, expected, p.GuestID)
	}
	if digestFor(p.GuestID, p.PublicValues) != p.Digest {
		return ErrProofInvalid
	}
	return nil
}

// HashProofWitness is the hash-proof guest's private input: the plaintext
// windows of a single client request and the blinding factors used to mask
// each one before it ever leaves the client.
//
// Windows carries its own explicit length, so the guest logic below walks
// it directly rather than framing the stream with a sentinel terminator.
type HashProofWitness struct {
	Windows         []query.Window
	BlindingFactors []ristretto.Scalar
}

// HashProofOutput is the hash-proof guest's committed public values: the
// blinded query point for every window, in emission order.
type HashProofOutput struct {
	Queries [][32]byte `cbor:"queries"`
}

// ProveHashProof runs the hash-proof guest: hash each window's message to a
// curve point, blind it with the matching factor, and seal the resulting
// queries as the proof's public values. It also returns the queries
// themselves, which the caller sends on to the keyserver committee.
func ProveHashProof(witness HashProofWitness) (Proof, []ristretto.Point, error) {
	if len(witness.Windows) != len(witness.BlindingFactors) {
		return Proof{}, nil, fmt.Errorf("zkvm: %d windows but %d blinding factors", len(witness.Windows), len(witness.BlindingFactors))
	}

	queries := make([]ristretto.Point, len(witness.Windows))
	output := HashProofOutput{Queries: make([][32]byte, len(witness.Windows))}
	for i, w := range witness.Windows {
		point := ristretto.HashToPoint(w.Message).Mul(witness.BlindingFactors[i])
		queries[i] = point
		output.Queries[i] = point.Encode()
	}

	proof, err := seal(GuestHashProof, output)
	if err != nil {
		return Proof{}, nil, err
	}
	return proof, queries, nil
}

// ChecksumProofWitness is the checksum-proof guest's private input: the
// batch's random modifier, the active-security key, the accumulated
// verifier sum across every window, and the verification and blinding
// factors drawn for the synthetic checksum query.
type ChecksumProofWitness struct {
	Rho                ristretto.Scalar
	Key                activesecurity.Key
	VerifierSum        ristretto.Point
	V0                 ristretto.Scalar
	BlindingFactorZero ristretto.Scalar
}

// ChecksumProofOutput is the checksum-proof guest's committed public value:
// the blinded, synthetic checksum query.
type ChecksumProofOutput struct {
	Query [32]byte `cbor:"query"`
}

// ProveChecksumProof runs the checksum-proof guest: recompute the
// randomized target, the checksum point it implies, and the blinded
// synthetic query x_0 sent to the committee alongside the batch's real
// windows.
func ProveChecksumProof(witness ChecksumProofWitness) (Proof, ristretto.Point, error) {
	target := witness.Key.RandomizedTarget(witness.Rho)
	checksumPoint := target.ChecksumPointForValidation(witness.VerifierSum)
	x0 := checksumPoint.Mul(witness.V0.Invert())
	blinded := x0.Mul(witness.BlindingFactorZero)

	proof, err := seal(GuestChecksumProof, ChecksumProofOutput{Query: blinded.Encode()})
	if err != nil {
		return Proof{}, ristretto.Point{}, err
	}
	return proof, blinded, nil
}

// VerificationProofWitness is the verification-proof guest's private input:
// the two sub-proofs it must check, the query state set they produced, and
// the keyserver responses to incorporate into it.
type VerificationProofWitness struct {
	HashProof          Proof
	ChecksumProof      Proof
	StateSet           *query.StateSet
	KeyserverResponses map[party.ID][]ristretto.Point
}

// VerificationProofOutput is the verification-proof guest's committed
// public values: whether the batch's active-security checksum validated,
// and, if it did, the packed tagged-hash stream ready for HDB lookup.
type VerificationProofOutput struct {
	Valid  bool   `cbor:"valid"`
	Hashes []byte `cbor:"hashes"`
}

// ProveVerificationProof runs the verification-proof guest: check both
// sub-proofs, bind them to the batch being screened, incorporate every
// keyserver response into the query state set, reconstruct every window's
// hash, and validate the batch's active-security checksum, committing the
// outcome and (on success) the tagged hashes the HDB will look up.
//
// This replays incorporation, reconstruction, and active-security
// validation in full; it does not stop at verifying the two sub-proofs and
// committing a bare success flag.
func ProveVerificationProof(witness VerificationProofWitness) (Proof, []tagged.TaggedHash, error) {
	if err := witness.HashProof.Verify(GuestHashProof); err != nil {
		return Proof{}, nil, fmt.Errorf("zkvm: hash proof: %w", err)
	}
	if err := witness.ChecksumProof.Verify(GuestChecksumProof); err != nil {
		return Proof{}, nil, fmt.Errorf("zkvm: checksum proof: %w", err)
	}

	var hashOut HashProofOutput
	if err := cbor.Unmarshal(witness.HashProof.PublicValues, &hashOut); err != nil {
		return Proof{}, nil, fmt.Errorf("zkvm: decoding hash proof public values: %w", err)
	}
	var checksumOut ChecksumProofOutput
	if err := cbor.Unmarshal(witness.ChecksumProof.PublicValues, &checksumOut); err != nil {
		return Proof{}, nil, fmt.Errorf("zkvm: decoding checksum proof public values: %w", err)
	}

	queries := witness.StateSet.Queries()
	if len(queries) == 0 {
		return Proof{}, nil, fmt.Errorf("zkvm: batch carries no queries")
	}
	windowQueries, checksumQuery := queries[:len(queries)-1], queries[len(queries)-1]

	if len(hashOut.Queries) != len(windowQueries) {
		return Proof{}, nil, fmt.Errorf("%w: hash proof commits %d queries, batch has %d", ErrBatchMismatch, len(hashOut.Queries), len(windowQueries))
	}
	for i, q := range windowQueries {
		if hashOut.Queries[i] != q.Encode() {
			return Proof{}, nil, fmt.Errorf("%w: hash proof query %d does not match batch", ErrBatchMismatch, i)
		}
	}
	if checksumOut.Query != checksumQuery.Encode() {
		return Proof{}, nil, fmt.Errorf("%w: checksum proof query does not match batch", ErrBatchMismatch)
	}

	for id, parts := range witness.KeyserverResponses {
		if err := witness.StateSet.IncorporateResponse(id, parts); err != nil {
			return Proof{}, nil, fmt.Errorf("zkvm: incorporating response from %s: %w", id, err)
		}
	}

	hashes, recErr := witness.StateSet.GetHashValues()
	valid := recErr == nil

	var stream []byte
	if valid {
		stream = tagged.EncodeStream(hashes)
	}

	proof, err := seal(GuestVerificationProof, VerificationProofOutput{Valid: valid, Hashes: stream})
	if err != nil {
		return Proof{}, nil, err
	}
	if !valid {
		return proof, nil, recErr
	}
	return proof, hashes, nil
}

// DecodeVerificationOutput recovers the committed validity flag and tagged
// hashes from a sealed verification-proof, without re-running the guest or
// needing its witness. Callers (the HDB screening gate) use this alongside
// Proof.Verify to accept or reject a batch.
func (p Proof) DecodeVerificationOutput() (VerificationProofOutput, error) {
	if p.GuestID != GuestVerificationProof {
		return VerificationProofOutput{}, fmt.Errorf("zkvm: not a verification proof")
	}
	var out VerificationProofOutput
	if err := cbor.Unmarshal(p.PublicValues, &out); err != nil {
		return VerificationProofOutput{}, fmt.Errorf("zkvm: decoding public values: %w", err)
	}
	return out, nil
}
