package redis

// Config identifies the stream and this instance's consumer-group membership.
type Config struct {
	Addr         string
	Password     string
	Stream       string
	Group        string
	ConsumerName string
}
