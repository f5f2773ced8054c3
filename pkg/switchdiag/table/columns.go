package table

// IF-MIB ifTable columns.
const (
	IfDescr       = "1.3.6.1.2.1.2.2.1.2"
	IfType        = "1.3.6.1.2.1.2.2.1.3"
	IfMtu         = "1.3.6.1.2.1.2.2.1.4"
	IfSpeed       = "1.3.6.1.2.1.2.2.1.5"
	IfPhysAddress = "1.3.6.1.2.1.2.2.1.6"
	IfAdminStatus = "1.3.6.1.2.1.2.2.1.7"
	IfOperStatus  = "1.3.6.1.2.1.2.2.1.8"
	IfInOctets    = "1.3.6.1.2.1.2.2.1.10"
	IfInDiscards  = "1.3.6.1.2.1.2.2.1.13"
	IfInErrors    = "1.3.6.1.2.1.2.2.1.14"
	IfOutOctets   = "1.3.6.1.2.1.2.2.1.16"
	IfOutDiscards = "1.3.6.1.2.1.2.2.1.19"
	IfOutErrors   = "1.3.6.1.2.1.2.2.1.20"
)

// InterfacePrimary drives the interface table: one row per ifDescr entry.
var InterfacePrimary = Column{Field: "name", Root: IfDescr}

// InterfaceColumns are the per-interface attributes.
var InterfaceColumns = []Column{
	{Field: "type", Root: IfType},
	{Field: "admin_status", Root: IfAdminStatus},
	{Field: "oper_status", Root: IfOperStatus},
	{Field: "mtu", Root: IfMtu},
	{Field: "speed", Root: IfSpeed},
	{Field: "phys_address", Root: IfPhysAddress},
}

// InterfaceStatPrimary drives the counter table: one row per ifInOctets entry.
var InterfaceStatPrimary = Column{Field: "in_octets", Root: IfInOctets}

// InterfaceStatColumns are the per-interface counters.
var InterfaceStatColumns = []Column{
	{Field: "out_octets", Root: IfOutOctets},
	{Field: "in_errors", Root: IfInErrors},
	{Field: "out_errors", Root: IfOutErrors},
	{Field: "in_discards", Root: IfInDiscards},
	{Field: "out_discards", Root: IfOutDiscards},
}
