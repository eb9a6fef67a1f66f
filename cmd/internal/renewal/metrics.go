package renewal

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var transitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "renova_workflow_transitions_total",
	Help: "Workflow step entries by target step.",
}, []string{"to"})
