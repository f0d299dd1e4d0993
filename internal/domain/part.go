package domain

import "time"

// Part is a spare part kept in inventory.
type Part struct {
	ID          int64
	Name        string
	VendorCode  string
	Price       float64
	Quantity    int
	MinQuantity int
	Supplier    string
	LastOrdered *time.Time
}

// IsLowStock reports whether the stock fell to the reorder level.
func (p Part) IsLowStock() bool {
	return p.Quantity <= p.MinQuantity
}

// PartUsage records how many units of a part a ticket consumed.
type PartUsage struct {
	TicketID int64
	PartID   int64
	Quantity int
	UsedDate time.Time

	PartName   string
	VendorCode string
	Price      float64
}

// Total returns the cost of the consumed units.
func (u PartUsage) Total() float64 {
	return u.Price * float64(u.Quantity)
}
