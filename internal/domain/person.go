package domain

// CustodiedPerson is an individual held at a facility. Owned by an external registry.
type CustodiedPerson struct {
	ID         string
	FullName   string
	FacilityID string
}

// Visitor is an individual scheduled to visit a custodied person. Owned by an external registry.
type Visitor struct {
	ID       string
	FullName string
}
