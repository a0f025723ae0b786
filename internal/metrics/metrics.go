package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

type Metrics struct {
	Registry *prometheus.Registry

	OrdersCreated    prometheus.Counter
	OrdersCancelled  prometheus.Counter
	OrdersExpired    prometheus.Counter
	PaymentsApproved prometheus.Counter
	EmailsSent       prometheus.Counter
	EmailsFailed     prometheus.Counter
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		Registry: reg,
		OrdersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_orders_created_total",
			Help: "Orders created at checkout.",
		}),
		OrdersCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_orders_cancelled_total",
			Help: "Orders cancelled by their owner before payment.",
		}),
		OrdersExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_orders_expired_total",
			Help: "Pending orders cancelled by the expiration sweeper.",
		}),
		PaymentsApproved: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_payments_approved_total",
			Help: "Orders transitioned to approved by webhook reconciliation.",
		}),
		EmailsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_confirmation_emails_sent_total",
			Help: "Order confirmation emails handed to the SMTP transport.",
		}),
		EmailsFailed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stk_confirmation_emails_failed_total",
			Help: "Order confirmation emails the SMTP transport rejected.",
		}),
	}

	reg.MustRegister(
		m.OrdersCreated,
		m.OrdersCancelled,
		m.OrdersExpired,
		m.PaymentsApproved,
		m.EmailsSent,
		m.EmailsFailed,
	)

	return m
}
