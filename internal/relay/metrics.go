package relay

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "relay_connected_clients",
		Help: "Number of currently connected clients",
	})

	ConnectionsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_connections_total",
		Help: "Total accepted client connections",
	})

	MessagesPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_published_total",
		Help: "Total lines published on the broadcast bus",
	})

	MessagesDelivered = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_delivered_total",
		Help: "Total lines written to client sockets",
	})

	MessagesDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_messages_dropped_total",
		Help: "Total lines dropped from full subscriber queues",
	})

	AcceptErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "relay_accept_errors_total",
		Help: "Total failed accept calls on the relay listener",
	})
)

func init() {
	prometheus.MustRegister(ConnectedClients)
	prometheus.MustRegister(ConnectionsTotal)
	prometheus.MustRegister(MessagesPublished)
	prometheus.MustRegister(MessagesDelivered)
	prometheus.MustRegister(MessagesDropped)
	prometheus.MustRegister(AcceptErrors)
}
