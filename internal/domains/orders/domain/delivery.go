package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDeliveryAreaNotServed = errors.New("address is outside the delivery area")
	ErrAmbiguousDeliveryArea = errors.New("address matches more than one delivery area")
)

// DeliveryArea is a zip/city pair the restaurant delivers to.
type DeliveryArea struct {
	Zip  string
	City string
}

func (a DeliveryArea) matches(addr Address) bool {
	return normalize(a.Zip) == normalize(addr.Zip) && strings.EqualFold(normalize(a.City), normalize(addr.City))
}

// ResolveDeliveryArea returns the single configured area matching addr.
func ResolveDeliveryArea(areas []DeliveryArea, addr Address) (DeliveryArea, error) {
	var found []DeliveryArea
	for _, area := range areas {
		if area.matches(addr) {
			found = append(found, area)
		}
	}
	switch len(found) {
	case 1:
		return found[0], nil
	case 0:
		return DeliveryArea{}, fmt.Errorf("%w: %s %s", ErrDeliveryAreaNotServed, addr.Zip, addr.City)
	default:
		return DeliveryArea{}, fmt.Errorf("%w: %s %s", ErrAmbiguousDeliveryArea, addr.Zip, addr.City)
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
