package repository

import (
	"errors"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	reasonConditionalCheckFailed = "ConditionalCheckFailed"
	reasonTransactionConflict    = "TransactionConflict"
)

func isConditionalCheckFailed(err error) bool {
	var ccf *types.ConditionalCheckFailedException
	return errors.As(err, &ccf)
}

// cancelReasons returns the per-item reason codes of a cancelled transaction,
// or nil if err is not a cancellation.
func cancelReasons(err error) []string {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return nil
	}
	codes := make([]string, len(tce.CancellationReasons))
	for i, r := range tce.CancellationReasons {
		if r.Code != nil {
			codes[i] = *r.Code
		}
	}
	return codes
}

func hasReason(codes []string, reason string) bool {
	for _, c := range codes {
		if c == reason {
			return true
		}
	}
	return false
}

// firstFailedCondition is the index of the first item whose condition failed, or -1.
func firstFailedCondition(codes []string) int {
	for i, c := range codes {
		if c == reasonConditionalCheckFailed {
			return i
		}
	}
	return -1
}
