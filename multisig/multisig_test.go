package multisig

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignatureSet(t *testing.T) {
	a := testAddress(1)
	b := testAddress(2)
	c := testAddress(3)
	set := SignatureSet{{Address: a, Approved: true}, {Address: b}, {Address: c, Approved: true}}

	require.EqualValues(t, 2, set.Approvals())
	require.True(t, set.HasApproved(a))
	require.False(t, set.HasApproved(b))
	require.False(t, set.HasApproved(testAddress(4)))
	require.True(t, IsMember([]Address{a, b}, b))
	require.False(t, IsMember([]Address{a, b}, c))
}

func TestProposalKindName(t *testing.T) {
	require.Equal(t, "Transaction", ProposalKind{Transaction: &Transaction{}}.Name())
	require.Equal(t, "UpdateContract", ProposalKind{UpdateContract: &UpdateContract{}}.Name())
	require.Equal(t, "Unknown", ProposalKind{}.Name())
}

func TestKindOf(t *testing.T) {
	for _, tc := range []struct {
		err  error
		kind ErrorKind
	}{
		{nil, KindNone},
		{Invalid("title", "empty"), KindValidation},
		{fmt.Errorf("wrapped: %w", &RejectedError{Function: "execute_proposal", Code: CodeQuorumNotReached}), KindRejected},
		{&NotFoundError{What: "proposal", ID: "3"}, KindNotFound},
		{&TimeoutError{Function: "sign_proposal", Submitted: true, Err: context.DeadlineExceeded}, KindTimeout},
		{context.DeadlineExceeded, KindTimeout},
		{DirectoryError{errors.New("boom")}, KindDirectoryUnavailable},
		{fmt.Errorf("%w: 1 dropped", ErrPartialAggregate), KindPartialAggregate},
		{errors.New("connection refused"), KindTransport},
	} {
		require.Equal(t, tc.kind, KindOf(tc.err), "%v", tc.err)
	}
}

func TestRejectedErrorMessage(t *testing.T) {
	err := &RejectedError{Function: "execute_proposal", Code: CodeQuorumNotReached}
	require.Contains(t, err.Error(), "QuorumNotReached")
	require.Equal(t, "ContractError(99)", ContractErrorCode(99).String())

	var rejected *RejectedError
	require.True(t, errors.As(fmt.Errorf("x: %w", err), &rejected))
	require.Equal(t, CodeQuorumNotReached, rejected.Code)
}

func TestTimeoutErrorMessage(t *testing.T) {
	err := &TimeoutError{Function: "sign_proposal", Submitted: true, Err: context.DeadlineExceeded}
	require.Contains(t, err.Error(), "outcome unknown")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseAmount(t *testing.T) {
	units, err := ParseAmount("12.5")
	require.NoError(t, err)
	require.EqualValues(t, 125_000_000, units)
	require.Equal(t, "12.5", FormatAmount(units))

	units, err = ParseAmount("0.0000001")
	require.NoError(t, err)
	require.EqualValues(t, 1, units)

	for _, bad := range []string{"", "abc", "0", "-1", "0.00000001", "99999999999999999999"} {
		_, err := ParseAmount(bad)
		require.ErrorIs(t, err, ErrValidation, bad)
	}
}

func TestParseWasmHash(t *testing.T) {
	hex := strings.Repeat("ab", 32)
	h, err := ParseWasmHash(hex)
	require.NoError(t, err)
	require.Equal(t, byte(0xab), h[0])

	h2, err := ParseWasmHash("0x" + hex)
	require.NoError(t, err)
	require.Equal(t, h, h2)

	_, err = ParseWasmHash(strings.Repeat("ab", 31))
	require.ErrorIs(t, err, ErrValidation)
	_, err = ParseWasmHash("zz")
	require.ErrorIs(t, err, ErrValidation)
}

func TestQuorumBpsFromPercent(t *testing.T) {
	bps, err := QuorumBpsFromPercent(50)
	require.NoError(t, err)
	require.EqualValues(t, 5000, bps)

	bps, err = QuorumBpsFromPercent(100)
	require.NoError(t, err)
	require.EqualValues(t, MaxQuorumBps, bps)

	_, err = QuorumBpsFromPercent(0)
	require.ErrorIs(t, err, ErrValidation)
	_, err = QuorumBpsFromPercent(101)
	require.ErrorIs(t, err, ErrValidation)
}

func TestSessionValidate(t *testing.T) {
	var s *Session
	require.ErrorIs(t, s.Validate(), ErrValidation)
	require.ErrorIs(t, (&Session{Address: testAddress(1)}).Validate(), ErrValidation)
}

func testAddress(seed byte) Address {
	pub := make([]byte, 32)
	pub[0] = seed
	a, err := AccountAddress(pub)
	if err != nil {
		panic(err)
	}
	return a
}
