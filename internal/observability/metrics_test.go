package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/aristath/coherence/internal/modules/evolution"
)

func TestRecorder_RecordEvolution(t *testing.T) {
	r := NewRecorder()

	validBefore := testutil.ToFloat64(evolutionsTotal.WithLabelValues("posner", "VALID"))
	abortedBefore := testutil.ToFloat64(evolutionsTotal.WithLabelValues("posner", "ABORTED"))
	positivityBefore := testutil.ToFloat64(evolutionAborts.WithLabelValues("positivity"))
	truncatedBefore := testutil.ToFloat64(truncatedRuns)

	r.RecordEvolution("posner", evolution.Diagnostics{StepsExecuted: 1000, Elapsed: time.Millisecond})
	r.RecordEvolution("posner", evolution.Diagnostics{
		StepsExecuted: 12,
		Aborted:       true,
		FailedCheck:   evolution.CheckPositivity,
		Truncated:     true,
	})

	assert.Equal(t, validBefore+1, testutil.ToFloat64(evolutionsTotal.WithLabelValues("posner", "VALID")))
	assert.Equal(t, abortedBefore+1, testutil.ToFloat64(evolutionsTotal.WithLabelValues("posner", "ABORTED")))
	assert.Equal(t, positivityBefore+1, testutil.ToFloat64(evolutionAborts.WithLabelValues("positivity")))
	assert.Equal(t, truncatedBefore+1, testutil.ToFloat64(truncatedRuns))
}

func TestRecorder_RecordFidelityClamp(t *testing.T) {
	r := NewRecorder()
	before := testutil.ToFloat64(fidelityClamps)

	r.RecordFidelityClamp(3)

	assert.Equal(t, before+3, testutil.ToFloat64(fidelityClamps))
}
