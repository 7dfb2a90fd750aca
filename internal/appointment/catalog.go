package appointment

import (
	"slices"
	"strings"
)

type ServiceType string

const (
	TypeCheckup       ServiceType = "CHECKUP"
	TypeVaccination   ServiceType = "VACCINATION"
	TypeConsultation  ServiceType = "CONSULTATION"
	TypeDental        ServiceType = "DENTAL"
	TypeSurgery       ServiceType = "SURGERY"
	TypeGrooming      ServiceType = "GROOMING"
	TypeFollowUp      ServiceType = "FOLLOW_UP"
	TypeEmergencyCare ServiceType = "EMERGENCY_CARE"
)

const (
	MinDuration     = 15
	MaxDuration     = 240
	DefaultDuration = 30

	EmergencyDuration = 120
	EmergencyCost     = 250.0
)

// ServiceInfo is the fixed data attached to a service type.
// The first allowed duration is the default.
type ServiceInfo struct {
	AllowedDurations []int
	Cost             float64
}

var catalog = map[ServiceType]ServiceInfo{
	TypeCheckup:       {AllowedDurations: []int{30, 45, 60}, Cost: 50},
	TypeVaccination:   {AllowedDurations: []int{30, 15}, Cost: 35},
	TypeConsultation:  {AllowedDurations: []int{30, 60}, Cost: 60},
	TypeDental:        {AllowedDurations: []int{60, 90, 120}, Cost: 150},
	TypeSurgery:       {AllowedDurations: []int{120, 60, 90, 180, 240}, Cost: 400},
	TypeGrooming:      {AllowedDurations: []int{60, 30, 90}, Cost: 40},
	TypeFollowUp:      {AllowedDurations: []int{30, 15}, Cost: 30},
	TypeEmergencyCare: {AllowedDurations: []int{EmergencyDuration}, Cost: EmergencyCost},
}

// ProtectedTypes are never cancelled to make room for an emergency.
var ProtectedTypes = []ServiceType{TypeSurgery}

func ParseServiceType(s string) (ServiceType, bool) {
	t := ServiceType(strings.ToUpper(strings.TrimSpace(s)))
	_, ok := catalog[t]
	return t, ok
}

func (t ServiceType) Info() ServiceInfo {
	return catalog[t]
}

func (t ServiceType) DefaultDuration() int {
	info, ok := catalog[t]
	if !ok || len(info.AllowedDurations) == 0 {
		return DefaultDuration
	}
	return info.AllowedDurations[0]
}

func (t ServiceType) Allows(duration int) bool {
	return slices.Contains(catalog[t].AllowedDurations, duration)
}

func (t ServiceType) Protected() bool {
	return slices.Contains(ProtectedTypes, t)
}

// ServiceTypes lists the catalog in a stable order.
func ServiceTypes() []ServiceType {
	types := make([]ServiceType, 0, len(catalog))
	for t := range catalog {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}
