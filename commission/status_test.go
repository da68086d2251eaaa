package commission_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brokerdesk/commission-engine/commission"
)

func calculatedResult() commission.Result {
	return commission.Result{
		PolicyID:                    "p-1",
		SourceType:                  commission.SourceAgent,
		Status:                      commission.StatusCalculated,
		InsurerCommission:           dec("1000"),
		AgentCommission:             dec("700"),
		MISPCommission:              dec("0"),
		EmployeeCommission:          dec("0"),
		ReportingEmployeeCommission: dec("0"),
		BrokerShare:                 dec("300"),
	}
}

func TestLabel(t *testing.T) {
	g := grid("g-1", "motor", "", "10", "0", "0")

	var r commission.Result
	commission.Label(&r, g, true, runTime)
	assert.Equal(t, commission.StatusCalculated, r.Status)
	assert.Equal(t, commission.GridID("g-1"), r.GridID)
	assert.Equal(t, "motor_grid", r.GridTable)
	assert.Equal(t, runTime, r.CalcDate)

	commission.Label(&r, g, false, runTime)
	assert.Equal(t, commission.StatusNoGridMatch, r.Status)
	assert.Empty(t, r.GridID)
	assert.Empty(t, r.GridTable)
}

func TestMarkError_ZeroesAmounts(t *testing.T) {
	r := calculatedResult()
	r.SourceName = "Ravi"

	commission.MarkError(&r, errors.New("lookup timed out"))

	assert.Equal(t, commission.StatusError, r.Status)
	assert.Equal(t, "lookup timed out", r.Error)
	assert.Equal(t, "Ravi", r.SourceName)
	assert.True(t, r.InsurerCommission.IsZero())
	assert.True(t, r.PartyTotal().IsZero())
}

func TestCheckResult(t *testing.T) {
	require.NoError(t, commission.CheckResult(calculatedResult()))

	// One minor unit of drift is tolerated.
	r := calculatedResult()
	r.BrokerShare = dec("300.01")
	assert.NoError(t, commission.CheckResult(r))

	r.BrokerShare = dec("300.02")
	assert.ErrorIs(t, commission.CheckResult(r), commission.ErrInvariantViolated)

	r = calculatedResult()
	r.MISPCommission = dec("100")
	r.BrokerShare = dec("200")
	assert.ErrorIs(t, commission.CheckResult(r), commission.ErrInvariantViolated, "misp paid on an agent policy")

	r = calculatedResult()
	r.AgentCommission = dec("0")
	r.BrokerShare = dec("1000")
	assert.ErrorIs(t, commission.CheckResult(r), commission.ErrInvariantViolated, "agent policy with nobody paid")

	r.SourceType = commission.SourceDirect
	assert.NoError(t, commission.CheckResult(r), "direct policies pay only the broker")

	r = calculatedResult()
	r.InsurerCommission = dec("0")
	r.AgentCommission = dec("0")
	r.BrokerShare = dec("0")
	assert.NoError(t, commission.CheckResult(r), "nothing to pay on a zero commission")

	r = calculatedResult()
	r.Status = commission.StatusNoGridMatch
	r.BrokerShare = dec("0")
	assert.NoError(t, commission.CheckResult(r), "only calculated results are checked")
}
