package device

import (
	"strings"
)

type FilterFunc func(Device) bool

func Any() FilterFunc {
	return func(Device) bool {
		return true
	}
}

func Not(filter FilterFunc) FilterFunc {
	return func(d Device) bool {
		return !filter(d)
	}
}

func Or(filters ...FilterFunc) FilterFunc {
	return func(d Device) bool {
		for _, filter := range filters {
			if filter(d) {
				return true
			}
		}
		return false
	}
}

func And(filters ...FilterFunc) FilterFunc {
	return func(d Device) bool {
		for _, filter := range filters {
			if !filter(d) {
				return false
			}
		}
		return true
	}
}

// ByPathSubstring keeps devices whose node path contains pattern.
func ByPathSubstring(pattern string) FilterFunc {
	return func(d Device) bool {
		return strings.Contains(d.DevPath, pattern)
	}
}

// ByIdentity keeps devices whose identity key equals identity.
func ByIdentity(identity string) FilterFunc {
	return func(d Device) bool {
		return d.Identity() == identity
	}
}

func HasSerial(d Device) bool {
	return d.Serial != ""
}
