// Package hdb implements the hazard database's screening verifier: the
// gate that checks a client's verification-proof before any hazard lookup
// is attempted, and the bounded-concurrency fan-out that looks up every
// window's reconstructed hash once the proof has been accepted.
//
// Database I/O against the hazard corpus, region policy, and exemption
// handling are out of scope here; HazardIndex is the seam a real server
// implementation plugs into.
package hdb

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/dnascreen/doprf/pkg/tagged"
	"github.com/dnascreen/doprf/pkg/zkvm"
)

// ErrProofRejected is returned when a screening request's verification
// proof does not verify, or does not commit a valid batch.
var ErrProofRejected = errors.New("hdb: verification proof rejected")

// ErrBatchMismatch is returned when the proof's committed tagged-hash list
// does not equal the request's own payload: the property the proof/HDB
// binding exists to enforce.
var ErrBatchMismatch = errors.New("hdb: committed tagged-hash list does not match request payload")

// ErrEmptyBatch is returned for a screening request carrying no windows.
var ErrEmptyBatch = errors.New("hdb: screening request carries no windows")

// HazardMatch is one hit returned by the hazard index for a single window's
// reconstructed hash.
type HazardMatch struct {
	HazardID string
	Region   string
}

// HazardIndex looks up one window's reconstructed hash against the hazard
// corpus. Implementations own the actual storage; this package never
// touches it directly.
type HazardIndex interface {
	Lookup(ctx context.Context, hash [32]byte) ([]HazardMatch, error)
}

// ScreeningRequest is the wire envelope a client sends for a batch: the
// packed TaggedHash stream and the proof attesting every hash in it was
// honestly derived, incorporated, and validated.
type ScreeningRequest struct {
	RistrettoData []byte
	Proof         zkvm.Proof
}

// HazardRecord groups every match found across a record's windows. Several
// TaggedHash entries can share a Record (the first-window flag plus
// record-local offset lets overlapping windows of the same record be told
// apart); screening reports one HazardRecord per distinct record.
type HazardRecord struct {
	Record  uint32
	Matches []HazardMatch
}

// ScreeningResult is the outcome of one screening request: the hazard
// matches found, grouped by record, in the order each record first appears
// in the request's payload.
type ScreeningResult struct {
	Records []HazardRecord
}

// Verifier gates screening requests on their verification-proof and fans
// hazard lookups out across a bounded pool of concurrent queries, itself
// bounded by a separate limit on concurrent requests.
type Verifier struct {
	index      HazardIndex
	perQuery   *semaphore.Weighted
	perRequest *semaphore.Weighted
}

// NewVerifier builds a screening verifier backed by index, admitting at
// most maxConcurrentQueries concurrent hazard lookups across all requests,
// and at most maxConcurrentRequests requests through Screen at once.
func NewVerifier(index HazardIndex, maxConcurrentQueries, maxConcurrentRequests int64) *Verifier {
	return &Verifier{
		index:      index,
		perQuery:   semaphore.NewWeighted(maxConcurrentQueries),
		perRequest: semaphore.NewWeighted(maxConcurrentRequests),
	}
}

// Screen verifies req's proof, checks its committed hash list matches the
// request's own payload, then looks up every window's hash concurrently
// (bounded by the per-query semaphore) and consolidates the results by
// record. No lookup is attempted unless the proof verifies.
func (v *Verifier) Screen(ctx context.Context, req ScreeningRequest) (ScreeningResult, error) {
	if err := v.perRequest.Acquire(ctx, 1); err != nil {
		return ScreeningResult{}, fmt.Errorf("hdb: acquiring request admission: %w", err)
	}
	defer v.perRequest.Release(1)

	if err := v.checkProof(req); err != nil {
		return ScreeningResult{}, err
	}

	hashes, err := tagged.DecodeStream(req.RistrettoData)
	if err != nil {
		return ScreeningResult{}, fmt.Errorf("hdb: decoding ristretto data: %w", err)
	}
	if len(hashes) == 0 {
		return ScreeningResult{}, ErrEmptyBatch
	}

	matches := make([][]HazardMatch, len(hashes))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range hashes {
		i, h := i, h
		g.Go(func() error {
			if err := v.perQuery.Acquire(gctx, 1); err != nil {
				return fmt.Errorf("hdb: acquiring query admission: %w", err)
			}
			defer v.perQuery.Release(1)

			found, err := v.index.Lookup(gctx, h.Hash.Encode())
			if err != nil {
				return fmt.Errorf("hdb: looking up record %d: %w", h.Tag.Record(), err)
			}
			matches[i] = found
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ScreeningResult{}, err
	}

	return consolidate(hashes, matches), nil
}

// checkProof enforces the proof/HDB binding: the request is accepted iff
// the verification-proof verifies and its committed hash list equals the
// request's own payload.
func (v *Verifier) checkProof(req ScreeningRequest) error {
	if err := req.Proof.Verify(zkvm.GuestVerificationProof); err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	out, err := req.Proof.DecodeVerificationOutput()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProofRejected, err)
	}
	if !out.Valid {
		return ErrProofRejected
	}
	if !bytes.Equal(out.Hashes, req.RistrettoData) {
		return ErrBatchMismatch
	}
	return nil
}

func consolidate(hashes []tagged.TaggedHash, matches [][]HazardMatch) ScreeningResult {
	order := make([]uint32, 0, len(hashes))
	byRecord := make(map[uint32][]HazardMatch, len(hashes))
	for i, h := range hashes {
		record := h.Tag.Record()
		if _, seen := byRecord[record]; !seen {
			order = append(order, record)
		}
		byRecord[record] = append(byRecord[record], matches[i]...)
	}

	records := make([]HazardRecord, len(order))
	for i, record := range order {
		records[i] = HazardRecord{Record: record, Matches: byRecord[record]}
	}
	return ScreeningResult{Records: records}
}
