package query

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/dnascreen/doprf/pkg/activesecurity"
	"github.com/dnascreen/doprf/pkg/party"
	"github.com/dnascreen/doprf/pkg/ristretto"
	"github.com/dnascreen/doprf/pkg/tagged"
)

// SerializableResponse is one incorporated keyserver response in wire form.
type SerializableResponse struct {
	ID   party.ID `cbor:"id"`
	Part [32]byte `cbor:"part"`
}

// SerializableState is a State in a form suitable for CBOR encoding. It
// carries only public data: the blinded query and the responses
// incorporated so far. The blinding and verification factors never appear
// here — r must never be revealed, and a State's verification factor is
// only ever needed alongside it — so a State restored from this form can
// record further responses but cannot reconstruct a hash or verifier; only
// the in-memory State that drew the factors can finish that computation.
type SerializableState struct {
	RequiredKeyholders int                    `cbor:"required_keyholders"`
	Query              [32]byte               `cbor:"query"`
	Responses          []SerializableResponse `cbor:"responses"`
}

// ToSerializable converts s into its wire form.
func (s *State) ToSerializable() SerializableState {
	responses := make([]SerializableResponse, len(s.responses))
	for i, r := range s.responses {
		responses[i] = SerializableResponse{ID: r.id, Part: r.part.Encode()}
	}
	return SerializableState{
		RequiredKeyholders: s.requiredKeyholders,
		Query:              s.query.Encode(),
		Responses:          responses,
	}
}

// StateFromSerializable reconstructs a State from its wire form. The
// returned State has no blinding or verification factor (they were never
// on the wire) and so can accumulate further responses but can never
// reconstruct a hash; GetHashValue and GetHashValueAndVerificationValue
// report false while it is below quorum and panic once it has reached
// quorum. Use this only to inspect or resume response
// collection, never to finish a batch.
func StateFromSerializable(s SerializableState) (*State, error) {
	q, err := ristretto.DecodePoint(s.Query[:])
	if err != nil {
		return nil, fmt.Errorf("query: query point: %w", err)
	}

	responses := make([]response, len(s.Responses))
	for i, r := range s.Responses {
		part, err := ristretto.DecodePoint(r.Part[:])
		if err != nil {
			return nil, fmt.Errorf("query: response %d: %w", i, err)
		}
		responses[i] = response{id: r.ID, part: part}
	}

	return &State{
		requiredKeyholders: s.RequiredKeyholders,
		query:              q,
		responses:          responses,
	}, nil
}

// SerializableKey is an activesecurity.Key in wire form.
type SerializableKey struct {
	PublicKey        [32]byte                  `cbor:"public_key"`
	SquaredPublicKey [32]byte                  `cbor:"squared_public_key"`
	Commitments      map[party.ID][32]byte     `cbor:"commitments"`
}

func serializeKey(k activesecurity.Key) SerializableKey {
	commitments := make(map[party.ID][32]byte, len(k.Commitments()))
	for id, p := range k.Commitments() {
		commitments[id] = p.Encode()
	}
	return SerializableKey{
		PublicKey:        k.PublicKey().Encode(),
		SquaredPublicKey: k.SquaredPublicKey().Encode(),
		Commitments:      commitments,
	}
}

func deserializeKey(s SerializableKey) (activesecurity.Key, error) {
	publicKey, err := ristretto.DecodePoint(s.PublicKey[:])
	if err != nil {
		return activesecurity.Key{}, fmt.Errorf("query: public key: %w", err)
	}
	squaredPublicKey, err := ristretto.DecodePoint(s.SquaredPublicKey[:])
	if err != nil {
		return activesecurity.Key{}, fmt.Errorf("query: squared public key: %w", err)
	}
	commitments := make(map[party.ID]ristretto.Point, len(s.Commitments))
	for id, b := range s.Commitments {
		p, err := ristretto.DecodePoint(b[:])
		if err != nil {
			return activesecurity.Key{}, fmt.Errorf("query: commitment for %s: %w", id, err)
		}
		commitments[id] = p
	}
	return activesecurity.FromParts(publicKey, squaredPublicKey, commitments), nil
}

// SerializableEntry pairs an optional HashTag with its serialized State.
// A nil Tag marks the synthetic checksum entry.
type SerializableEntry struct {
	Tag   *[4]byte          `cbor:"tag"`
	State SerializableState `cbor:"state"`
}

// SerializableStateSet is a StateSet in a form suitable for CBOR encoding.
type SerializableStateSet struct {
	Entries []SerializableEntry `cbor:"entries"`
	Rho     [32]byte            `cbor:"rho"`
	Key     SerializableKey     `cbor:"key"`
}

// ToSerializable converts ss into its wire form.
func (ss *StateSet) ToSerializable() SerializableStateSet {
	entries := make([]SerializableEntry, len(ss.entries))
	for i, e := range ss.entries {
		var tagBytes *[4]byte
		if e.tag != nil {
			b := e.tag.AsBytes()
			tagBytes = &b
		}
		entries[i] = SerializableEntry{Tag: tagBytes, State: e.state.ToSerializable()}
	}
	return SerializableStateSet{
		Entries: entries,
		Rho:     ss.target.Rho().Encode(),
		Key:     serializeKey(ss.target.Key()),
	}
}

// StateSetFromSerializable reconstructs a StateSet from its wire form.
func StateSetFromSerializable(s SerializableStateSet) (*StateSet, error) {
	key, err := deserializeKey(s.Key)
	if err != nil {
		return nil, err
	}
	rho, err := ristretto.DecodeScalar(s.Rho[:])
	if err != nil {
		return nil, fmt.Errorf("query: rho: %w", err)
	}

	entries := make([]entry, len(s.Entries))
	respondedIDs := make(map[party.ID]struct{})
	for i, e := range s.Entries {
		state, err := StateFromSerializable(e.State)
		if err != nil {
			return nil, fmt.Errorf("query: entry %d: %w", i, err)
		}
		var tag *tagged.HashTag
		if e.Tag != nil {
			t := tagged.TagFromBytes(*e.Tag)
			tag = &t
		}
		entries[i] = entry{tag: tag, state: state}
		for _, r := range state.responses {
			respondedIDs[r.id] = struct{}{}
		}
	}

	return &StateSet{
		entries:      entries,
		target:       activesecurity.TargetFromParts(rho, key),
		respondedIDs: respondedIDs,
	}, nil
}

// MarshalCBOR round-trips through SerializableStateSet.
func (ss *StateSet) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(ss.ToSerializable())
}

// UnmarshalCBOR round-trips through SerializableStateSet.
func (ss *StateSet) UnmarshalCBOR(data []byte) error {
	var s SerializableStateSet
	if err := cbor.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("query: decoding cbor: %w", err)
	}
	decoded, err := StateSetFromSerializable(s)
	if err != nil {
		return err
	}
	*ss = *decoded
	return nil
}
