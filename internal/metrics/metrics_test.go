package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/require"
)

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

func TestRetransmissionsIncrement(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.Retransmissions.Inc()
	m.Retransmissions.Inc()
	require.Equal(t, float64(2), counterValue(t, m.Retransmissions))
}

func TestTransactionsDoneLabelsByOutcome(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.TransactionsDone.WithLabelValues("complete").Inc()
	m.TransactionsDone.WithLabelValues("complete").Inc()
	m.TransactionsDone.WithLabelValues("timeout").Inc()

	require.Equal(t, float64(2), counterValue(t, m.TransactionsDone.WithLabelValues("complete")))
	require.Equal(t, float64(1), counterValue(t, m.TransactionsDone.WithLabelValues("timeout")))
}

func TestNopDoesNotPanic(t *testing.T) {
	m := Nop()
	m.ServiceRequests.WithLabelValues("read-property").Inc()
}
