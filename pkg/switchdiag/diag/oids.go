package diag

// SNMPv2-MIB system group.
const (
	oidSysDescr    = "1.3.6.1.2.1.1.1.0"
	oidSysUpTime   = "1.3.6.1.2.1.1.3.0"
	oidSysContact  = "1.3.6.1.2.1.1.4.0"
	oidSysName     = "1.3.6.1.2.1.1.5.0"
	oidSysLocation = "1.3.6.1.2.1.1.6.0"
)

// HOST-RESOURCES-MIB.
const (
	oidHrMemorySize    = "1.3.6.1.2.1.25.2.2.0"
	oidHrProcessorLoad = "1.3.6.1.2.1.25.3.3.1.2"
)

// BRIDGE-MIB dot1dStp.
const (
	oidStpPriority            = "1.3.6.1.2.1.17.2.2.0"
	oidStpTimeSinceTopoChange = "1.3.6.1.2.1.17.2.3.0"
	oidStpTopChanges          = "1.3.6.1.2.1.17.2.4.0"
	oidStpDesignatedRoot      = "1.3.6.1.2.1.17.2.5.0"
	oidStpRootCost            = "1.3.6.1.2.1.17.2.6.0"
	oidStpRootPort            = "1.3.6.1.2.1.17.2.7.0"
	oidStpPortState           = "1.3.6.1.2.1.17.2.15.1.3"
	oidStpPortEnable          = "1.3.6.1.2.1.17.2.15.1.4"
	oidStpPortPathCost        = "1.3.6.1.2.1.17.2.15.1.5"
)
