package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCountersRegistered(t *testing.T) {
	before := testutil.ToFloat64(FixesProcessed.WithLabelValues("accepted"))
	FixesProcessed.WithLabelValues("accepted").Inc()
	assert.Equal(t, before+1, testutil.ToFloat64(FixesProcessed.WithLabelValues("accepted")))

	OutboxPending.Set(3)
	assert.Equal(t, 3.0, testutil.ToFloat64(OutboxPending))
}
