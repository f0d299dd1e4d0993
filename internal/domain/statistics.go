package domain

// Statistics is the dashboard summary over all tickets.
type Statistics struct {
	Total           int
	Active          int
	Completed       int
	Overdue         int
	AvgRepairDays   float64
	TotalRevenue    float64
	UniqueClients   int
	ByStatus        map[TicketStatus]int
	ByApplianceType []CountByKey
	ByMaster        []MasterLoad
	ByMonth         []CountByKey
}

// CountByKey is a labelled counter.
type CountByKey struct {
	Key   string
	Count int
}

// MasterLoad summarises the tickets held by one master.
type MasterLoad struct {
	MasterID  int64
	Name      string
	Total     int
	Completed int
	Active    int
}
