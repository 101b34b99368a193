package logging

type Category string
type SubCategory string
type ExtraKey string

const (
	General         Category = "General"
	IO              Category = "IO"
	Internal        Category = "Internal"
	Realtime        Category = "Realtime"
	Redis           Category = "Redis"
	RabbitMQ        Category = "RabbitMQ"
	MongoDB         Category = "MongoDB"
	Validation      Category = "Validation"
	RequestResponse Category = "RequestResponse"
	Prometheus      Category = "Prometheus"
)

const (
	// General
	Startup         SubCategory = "Startup"
	Shutdown        SubCategory = "Shutdown"
	RateLimiting    SubCategory = "RateLimiting"
	ExternalService SubCategory = "ExternalService"

	// Realtime
	Connection   SubCategory = "Connection"
	Subscription SubCategory = "Subscription"
	Emission     SubCategory = "Emission"
	Delivery     SubCategory = "Delivery"
	Relay        SubCategory = "Relay"

	// Products
	Mutation SubCategory = "Mutation"
)

const (
	AppName      ExtraKey = "AppName"
	LoggerName   ExtraKey = "Logger"
	ClientIp     ExtraKey = "ClientIp"
	Method       ExtraKey = "Method"
	StatusCode   ExtraKey = "StatusCode"
	BodySize     ExtraKey = "BodySize"
	Path         ExtraKey = "Path"
	Latency      ExtraKey = "Latency"
	ErrorMessage ExtraKey = "ErrorMessage"

	ConnectionID ExtraKey = "ConnectionId"
	Room         ExtraKey = "Room"
	Channel      ExtraKey = "Channel"
	EventKind    ExtraKey = "EventKind"
	ProductID    ExtraKey = "ProductId"
	Recipients   ExtraKey = "Recipients"
)
