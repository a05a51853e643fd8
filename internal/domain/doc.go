// Package domain models the data that flows through the fire-danger service:
// weather observations, National Fire Danger Rating System (NFDRS) outputs,
// query intents, execution plans, and routed results.
//
// # NFDRS Conventions
//
// Observations use the customary NFDRS units:
//
//	Temperature:       degrees Fahrenheit, accepted range −50..150
//	Relative humidity: percent, 0..100
//	Wind speed:        miles per hour, 0..100 (20-ft standard exposure)
//	Precipitation:     inches over the trailing 24 hours, ≥ 0
//
// Inputs outside these bounds are rejected with a [ValidationError] naming
// the offending field. Inputs are never silently clamped; only derived
// moisture values are clamped, and only on output.
//
// Dead fuel moisture is modeled at the four standard timelag classes
// (1/10/100/1000-hour). Each class is a percentage clamped to [1,60]: below
// 1% dead fuel does not occur in nature, and above 60% fuels are too wet to
// carry fire, so values outside the band carry no rating signal.
//
// The derived components follow the published NFDRS scales:
//
//	Spread Component (SC):          0..99, dimensionless spread potential
//	Energy Release Component (ERC): 0..97, available combustion energy
//	Burning Index (BI):             0..999, composite intensity scalar
//
// The adjective classification is an ordered threshold table over BI:
// LOW (<25), MODERATE (<50), HIGH (<75), VERY HIGH (<90), EXTREME (≥90).
// Classification is monotonic by construction: a higher BI can never map to
// a lower class.
//
// # Query Model
//
// Free-text analytic queries are classified into an [Intent] and routed to
// the cheapest adequate execution path: direct calculation, multi-step
// decomposition, or delegation to an external collaborator. The result of a
// query is a [RoutedResult]; partial failures are reported per completed
// [ExecutionStep] rather than failing the whole query atomically.
package domain
