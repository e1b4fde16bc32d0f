package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/bitfsorg/pledgesplit-go/receipt"
	"github.com/bitfsorg/pledgesplit-go/split"
	"github.com/bitfsorg/pledgesplit-go/store"
)

var verifyPubKey string

var verifyCmd = &cobra.Command{
	Use:   "verify <receipt.json>",
	Short: "Verify a signed split receipt",
	Long: `Checks the signature of a receipt. The file may hold a bare receipt or a
split record as returned by GET /api/issues/{id}/split, in which case the
payouts are checked against the signed split as well.`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	verifyCmd.Flags().StringVar(&verifyPubKey, "pubkey", "", "Require this signer (hex compressed key)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}
	rec, err := decodeReceipt(data)
	if err != nil {
		return err
	}

	if verifyPubKey != "" {
		err = receipt.VerifyFrom(&rec.Receipt, verifyPubKey)
	} else {
		err = receipt.Verify(&rec.Receipt)
	}
	if err != nil {
		return err
	}
	if rec.Payouts != nil {
		if err := split.ValidatePayouts(rec.Payouts, &rec.Receipt.Split, rec.Receipt.Pool); err != nil {
			return err
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "OK: issue %s, %d recipients, signed by %s\n",
		rec.IssueID(), len(rec.Receipt.Split.Entries), rec.Receipt.PubKey)
	return nil
}

// decodeReceipt accepts either a split record or a bare receipt.
func decodeReceipt(data []byte) (*store.SplitRecord, error) {
	var rec store.SplitRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	if rec.Receipt.PubKey != "" {
		return &rec, nil
	}

	var r receipt.Receipt
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("decode receipt: %w", err)
	}
	return &store.SplitRecord{Receipt: r}, nil
}
