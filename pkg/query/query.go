// Package query implements the per-window query state machine and the
// batch driver that orchestrates an entire DOPRF request: blinding,
// response incorporation, reconstruction, and active-security validation
// with blame attribution.
package query

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
)

// SecurityParameter is the default active-security parameter σ: the
// probability a malicious keyserver evades detection is 2^-σ. Values of
// 4N+2 maximize the security/speed tradeoff; 18 costs about 2.5% overhead.
const SecurityParameter = 18

// ErrWrongSizeResponse is returned when a keyserver's response does not
// carry exactly one HashPart per query in the batch (windows + checksum).
var ErrWrongSizeResponse = errors.New("query: response has the wrong size")

// ErrMissingKeyserverResponse is returned when finalization is attempted
// before every query state has reached quorum.
var ErrMissingKeyserverResponse = errors.New("query: missing keyserver response")

// ErrDuplicateResponse is returned when the same keyserver id incorporates
// a second response into the same batch; accepting it would let a
// malicious keyserver double its own weight in the reconstruction sum.
var ErrDuplicateResponse = errors.New("query: duplicate response from keyserver")

// ErrAlreadyConsumed is returned when GetHashValues is called on a batch
// that has already been finalized once.
var ErrAlreadyConsumed = errors.New("query: batch already consumed")

// ValidationFailedError reports that the active-security checksum did not
// validate, and names the keyservers whose aggregated contribution is
// inconsistent with their committed share.
type ValidationFailedError struct {
	Keyservers []party.ID
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("query: checksum validation failed, responsible keyservers: %v", e.Keyservers)
}

// State is a single window's (or the batch's synthetic checksum query's)
// blinded query plus its accumulating keyserver responses.
type State struct {
	requiredKeyholders int
	blindingFactor     ristretto.Scalar
	verificationFactor ristretto.Scalar
	query              ristretto.Point
	responses          []response
}

type response struct {
	id   party.ID
	part ristretto.Point
}

// NewState blinds point with blindingFactor and stores the given
// verification factor for later active-security checks. Callers that also
// need a hash-proof guest to commit to this exact query (see
// zkvm.ProveHashProof) must pass the same blindingFactor to both, since the
// blinded point is a deterministic function of the two.
func NewState(point ristretto.Point, requiredKeyholders int, verificationFactor, blindingFactor ristretto.Scalar) *State {
	return &State{
		requiredKeyholders: requiredKeyholders,
		blindingFactor:     blindingFactor,
		verificationFactor: verificationFactor,
		query:              point.Mul(blindingFactor),
	}
}

// Query returns the blinded query point to send to keyservers.
func (s *State) Query() ristretto.Point {
	return s.query
}

// IncorporateResponse appends a keyserver's contribution. Duplicate
// detection across the whole batch is StateSet's responsibility; a bare
// State only accumulates.
func (s *State) IncorporateResponse(id party.ID, part ristretto.Point) {
	s.responses = append(s.responses, response{id: id, part: part})
}

// HasHash reports whether enough responses have been incorporated to
// reconstruct the hash.
func (s *State) HasHash() bool {
	return len(s.responses) >= s.requiredKeyholders
}

func (s *State) calculateHashValue() (ristretto.Point, bool) {
	if !s.HasHash() {
		return ristretto.Point{}, false
	}
	sum := ristretto.IdentityPoint()
	for _, r := range s.responses {
		sum = sum.Add(r.part)
	}
	return sum.Mul(s.blindingFactor.Invert()), true
}

// GetHashValue attempts to reconstruct the hash from incorporated responses.
func (s *State) GetHashValue() (ristretto.Point, bool) {
	return s.calculateHashValue()
}

// GetHashValueAndVerificationValue reconstructs the hash and, alongside it,
// the per-state point used for active-security validation: v·hash.
func (s *State) GetHashValueAndVerificationValue() (hash ristretto.Point, verifier ristretto.Point, ok bool) {
	hash, ok = s.calculateHashValue()
	if !ok {
		return ristretto.Point{}, ristretto.Point{}, false
	}
	verifier = ristretto.VartimeDoubleScalarMulBase(s.verificationFactor, hash, ristretto.ZeroScalar())
	return hash, verifier, true
}

type entry struct {
	tag   *tagged.HashTag
	state *State
}

// StateSet drives an entire batch: every window's State plus one synthetic,
// appended checksum State, together with the randomized target used to
// validate the batch as a whole.
type StateSet struct {
	entries      []entry
	target       activesecurity.RandomizedTarget
	respondedIDs map[party.ID]struct{}
	consumed     bool
}

// Window is one (tag, message) pair fed into NewStateSet.
type Window struct {
	Tag     tagged.HashTag
	Message []byte
}

// WindowFactors is the randomness a client draws once per query: the
// blinding factor masking the query point, and the verification factor
// weighting that window's contribution to the batch's active-security
// checksum. Drawing these outside StateSet construction lets the hash-proof
// and checksum-proof guests (see package zkvm) commit to the exact same
// blinded queries a StateSet built from the same factors will use to
// reconstruct — the two must agree on the randomness, not just the math.
type WindowFactors struct {
	Blinding     ristretto.Scalar
	Verification ristretto.Scalar
}

// DrawWindowFactors draws a fresh blinding/verification factor pair.
func DrawWindowFactors() (WindowFactors, error) {
	blinding, err := ristretto.RandomScalar()
	if err != nil {
		return WindowFactors{}, fmt.Errorf("query: drawing blinding factor: %w", err)
	}
	verification, err := randomVerificationFactor()
	if err != nil {
		return WindowFactors{}, err
	}
	return WindowFactors{Blinding: blinding, Verification: verification}, nil
}

func randomVerificationFactor() (ristretto.Scalar, error) {
	max := big.NewInt(1<<SecurityParameter + 1)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return ristretto.Scalar{}, fmt.Errorf("query: drawing verification factor: %w", err)
	}
	return ristretto.ScalarFromUint64(n.Uint64()), nil
}

// DeriveRho computes the batch's random modifier ρ from its window queries,
// binding ρ to this exact set of blinded points. Both StateSet construction
// and the checksum-proof guest derive ρ this same way from public data, so
// neither side needs the other's private factors to agree on it.
func DeriveRho(windowQueries []ristretto.Point) ristretto.Scalar {
	concat := make([]byte, 0, len(windowQueries)*32)
	for _, q := range windowQueries {
		concat = append(concat, q.Bytes()...)
	}
	return ristretto.HashToScalar(concat)
}

// NewStateSet draws a fresh WindowFactors pair per window (plus one for the
// synthetic checksum query) and builds the batch from them. Use this when
// nothing outside the StateSet needs to reproduce its blinded queries; use
// NewStateSetFromFactors when a hash-proof/checksum-proof pair must commit
// to the exact same queries this StateSet will reconstruct from.
func NewStateSet(windows []Window, requiredKeyholders int, key activesecurity.Key) (*StateSet, error) {
	factors := make([]WindowFactors, len(windows))
	for i := range windows {
		f, err := DrawWindowFactors()
		if err != nil {
			return nil, err
		}
		factors[i] = f
	}
	checksumFactors, err := DrawWindowFactors()
	if err != nil {
		return nil, err
	}
	return NewStateSetFromFactors(windows, requiredKeyholders, key, factors, checksumFactors)
}

// NewStateSetFromFactors hashes each window to a point, blinds it with the
// matching WindowFactors, accumulates the batch's verifier sum, derives the
// random modifier ρ from every emitted query, and appends the synthetic
// checksum query last. factors must carry one entry per window, in order.
func NewStateSetFromFactors(windows []Window, requiredKeyholders int, key activesecurity.Key, factors []WindowFactors, checksumFactors WindowFactors) (*StateSet, error) {
	if len(factors) != len(windows) {
		return nil, fmt.Errorf("query: %d windows but %d window factors", len(windows), len(factors))
	}

	entries := make([]entry, 0, len(windows)+1)
	sum := ristretto.IdentityPoint()
	windowQueries := make([]ristretto.Point, len(windows))

	for i, w := range windows {
		point := ristretto.HashToPoint(w.Message)
		vFactor := factors[i].Verification
		sum = sum.Add(ristretto.VartimeDoubleScalarMulBase(vFactor, point, ristretto.ZeroScalar()))

		state := NewState(point, requiredKeyholders, vFactor, factors[i].Blinding)
		windowQueries[i] = state.Query()

		tag := w.Tag
		entries = append(entries, entry{tag: &tag, state: state})
	}

	rho := DeriveRho(windowQueries)
	target := key.RandomizedTarget(rho)

	checksumPoint := target.ChecksumPointForValidation(sum)
	x0 := checksumPoint.Mul(checksumFactors.Verification.Invert())
	checksumState := NewState(x0, requiredKeyholders, checksumFactors.Verification, checksumFactors.Blinding)
	entries = append(entries, entry{tag: nil, state: checksumState})

	return &StateSet{
		entries:      entries,
		target:       target,
		respondedIDs: make(map[party.ID]struct{}),
	}, nil
}

// Len returns the number of queries in the batch, including the checksum query.
func (ss *StateSet) Len() int {
	return len(ss.entries)
}

// IsEmpty reports whether the batch carries no queries at all (never true:
// the checksum query is always present).
func (ss *StateSet) IsEmpty() bool {
	return ss.Len() == 0
}

// Queries returns every blinded query in emission order, ending with the
// synthetic checksum query.
func (ss *StateSet) Queries() []ristretto.Point {
	out := make([]ristretto.Point, len(ss.entries))
	for i, e := range ss.entries {
		out[i] = e.state.Query()
	}
	return out
}

// IncorporateResponse records one keyserver's response to every query in the
// batch. parts must carry exactly Len() entries, in query emission order.
func (ss *StateSet) IncorporateResponse(id party.ID, parts []ristretto.Point) error {
	if len(parts) != ss.Len() {
		return ErrWrongSizeResponse
	}
	if _, ok := ss.respondedIDs[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateResponse, id)
	}
	ss.respondedIDs[id] = struct{}{}

	for i, part := range parts {
		ss.entries[i].state.IncorporateResponse(id, part)
	}
	return nil
}

// AllHaveHash reports whether every query in the batch has reached quorum.
func (ss *StateSet) AllHaveHash() bool {
	for _, e := range ss.entries {
		if !e.state.HasHash() {
			return false
		}
	}
	return true
}

// quorum returns the canonical set of keyservers that answered this batch.
func (ss *StateSet) quorum() party.Set {
	ids := make([]party.ID, 0, len(ss.respondedIDs))
	for id := range ss.respondedIDs {
		ids = append(ids, id)
	}
	return party.NewSet(ids...)
}

// GetHashValues finalizes the batch: it reconstructs every window's hash,
// validates the aggregate checksum, and on success discards the synthetic
// checksum entry, returning the tagged hashes for the HDB. A batch can only
// be finalized once.
func (ss *StateSet) GetHashValues() ([]tagged.TaggedHash, error) {
	if ss.consumed {
		return nil, ErrAlreadyConsumed
	}
	if !ss.AllHaveHash() {
		return nil, ErrMissingKeyserverResponse
	}

	hashes := make([]tagged.TaggedHash, 0, len(ss.entries))
	verifierSum := ristretto.IdentityPoint()

	for _, e := range ss.entries {
		hash, verifier, ok := e.state.GetHashValueAndVerificationValue()
		if !ok {
			return nil, ErrMissingKeyserverResponse
		}
		tag := tagged.HashTag{}
		if e.tag != nil {
			tag = *e.tag
		}
		hashes = append(hashes, tagged.TaggedHash{Tag: tag, Hash: hash})
		verifierSum = verifierSum.Add(verifier)
	}

	if !ss.target.ValidateResponses(verifierSum) {
		return nil, &ValidationFailedError{Keyservers: ss.findKeyserversWithInvalidContribution()}
	}

	ss.consumed = true
	// Drop the synthetic checksum entry: it carries no tag and is never
	// reported to the HDB.
	return hashes[:len(hashes)-1], nil
}

func (ss *StateSet) findKeyserversWithInvalidContribution() []party.ID {
	individualSums := make(map[party.ID]ristretto.Point)
	quorum := ss.quorum()

	for _, e := range ss.entries {
		modification := e.state.blindingFactor.Invert().Mul(e.state.verificationFactor)
		for _, r := range e.state.responses {
			sum, ok := individualSums[r.id]
			if !ok {
				sum = ristretto.IdentityPoint()
			}
			individualSums[r.id] = sum.Add(r.part.Mul(modification))
		}
	}

	var responsible []party.ID
	for _, id := range quorum.IDs() {
		sum, ok := individualSums[id]
		if !ok {
			continue
		}
		if !ss.target.IsKeyserverResponseValid(quorum, id, sum) {
			responsible = append(responsible, id)
		}
	}
	return responsible
}
