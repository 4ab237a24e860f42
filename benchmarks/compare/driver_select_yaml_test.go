//go:build yaml

package compare_test

import (
	"github.com/reoring/dynform"
	dynyaml "github.com/reoring/dynform/source/yaml"
)

func init() { dynform.SetConfigDriver(dynyaml.Driver()) }
