package assets

import "github.com/spaghettifunk/tessera/engine/resources"

type Loader interface {
	// Load reads the asset at path. params is loader specific and may be nil.
	Load(path string, params interface{}) (*resources.Resource, error)
	Unload(*resources.Resource) error
}
