package internal

import (
	"sjsage522/specialsworker/services/cache"
	"sjsage522/specialsworker/services/publisher"
)

// Dependencies holds all service dependencies
type Dependencies struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}
