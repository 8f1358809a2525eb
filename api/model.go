package api

import "github.com/concierge-dev/concierge/provider"

// Model pairs a model name with the provider that can run it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
