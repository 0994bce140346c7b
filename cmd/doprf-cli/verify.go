package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fxamacker/cbor/v2"
	"github.com/spf13/cobra"

	"github.com/dnascreen/doprf/pkg/hdb"
	"github.com/dnascreen/doprf/pkg/zkvm"
)

func runVerify(cmd *cobra.Command, args []string) error {
	proofBytes, err := os.ReadFile(inputFile)
	if err != nil {
		return fmt.Errorf("reading proof file: %w", err)
	}
	var proof zkvm.Proof
	if err := cbor.Unmarshal(proofBytes, &proof); err != nil {
		return fmt.Errorf("decoding proof file: %w", err)
	}

	payload, err := os.ReadFile(payloadFile)
	if err != nil {
		return fmt.Errorf("reading payload file: %w", err)
	}

	verifier := hdb.NewVerifier(nullIndex{}, 8, 4)
	result, err := verifier.Screen(context.Background(), hdb.ScreeningRequest{RistrettoData: payload, Proof: proof})
	if err != nil {
		fmt.Printf("rejected: %v\n", err)
		return err
	}

	fmt.Printf("accepted: %d record(s) screened\n", len(result.Records))
	return nil
}
