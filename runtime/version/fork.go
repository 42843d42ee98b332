package version

import "github.com/pkg/errors"

const (
	Capella = iota
	Deneb
)

// ErrUnknownName is returned when a fork name cannot be mapped back to a version.
var ErrUnknownName = errors.New("unknown fork name")

func String(version int) string {
	switch version {
	case Capella:
		return "capella"
	case Deneb:
		return "deneb"
	default:
		return "unknown version"
	}
}

// FromString translates the builder API version tag into a fork version.
func FromString(name string) (int, error) {
	switch name {
	case "capella":
		return Capella, nil
	case "deneb":
		return Deneb, nil
	default:
		return 0, errors.Wrap(ErrUnknownName, name)
	}
}
