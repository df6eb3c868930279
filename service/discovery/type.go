package discovery

// IService publishes the current camera list on a channel, one slice per
// discovery round.
type IService interface {
	Subscribe() (<-chan []string, error)
	Unsubscribe() error
}
