package risk

import "math"

// Severity grades a violation finding.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Violation type names, in the order SummarizeViolations emits them.
const (
	ViolationNearCollisions     = "Vehicle Near-Collisions"
	ViolationPedestrianRisk     = "Pedestrian Proximity Risks"
	ViolationCongestion         = "High Traffic Congestion"
	ViolationCrowdedPedestrians = "Crowded Pedestrian Area"
	ViolationHighRiskClusters   = "High-Risk Frame Clusters"
	ViolationGeneralActivity    = "General Traffic Activity"
)

// Rule thresholds.
const (
	congestionMeanVehicles    = 8.0
	severeCongestionVehicles  = 15.0
	crowdedMeanPersons        = 5.0
	severeCrowdPersons        = 10.0
	highRiskFrameScore        = 60.0
	highRiskFrameClusterCount = 3
	generalActivityMinScore   = 10
	nearCollisionMediumCount  = 2
	nearCollisionHighCount    = 5
)

// Violation is a named finding accumulated over all frames of a run.
type Violation struct {
	Type     string   `json:"type"`
	Count    int      `json:"count"`
	Severity Severity `json:"severity"`
}

// SummarizeViolations evaluates the violation rules over every processed
// frame. Rules are independent and emitted in a fixed order; the "General
// Traffic Activity" fallback only appears when no other rule fired and the
// aggregate score is above 10.
//
// frames must be non-empty; an empty slice yields no findings.
func SummarizeViolations(frames []FrameAnalysis, aggregateScore int) []Violation {
	if len(frames) == 0 {
		return nil
	}

	var overlaps, proximity, vehicles, persons, highRiskFrames int
	for _, f := range frames {
		overlaps += f.OverlapIncidents
		proximity += f.ProximityIncidents
		vehicles += f.VehicleCount
		persons += f.PersonCount
		if f.Score > highRiskFrameScore {
			highRiskFrames++
		}
	}
	n := float64(len(frames))
	meanVehicles := float64(vehicles) / n
	meanPersons := float64(persons) / n

	var out []Violation

	if overlaps > 0 {
		sev := SeverityLow
		switch {
		case overlaps > nearCollisionHighCount:
			sev = SeverityHigh
		case overlaps > nearCollisionMediumCount:
			sev = SeverityMedium
		}
		out = append(out, Violation{Type: ViolationNearCollisions, Count: overlaps, Severity: sev})
	}

	if proximity > 0 {
		out = append(out, Violation{Type: ViolationPedestrianRisk, Count: proximity, Severity: SeverityHigh})
	}

	if meanVehicles > congestionMeanVehicles {
		sev := SeverityMedium
		if meanVehicles > severeCongestionVehicles {
			sev = SeverityHigh
		}
		out = append(out, Violation{Type: ViolationCongestion, Count: roundInt(meanVehicles), Severity: sev})
	}

	if meanPersons > crowdedMeanPersons {
		sev := SeverityMedium
		if meanPersons > severeCrowdPersons {
			sev = SeverityHigh
		}
		out = append(out, Violation{Type: ViolationCrowdedPedestrians, Count: roundInt(meanPersons), Severity: sev})
	}

	if highRiskFrames > highRiskFrameClusterCount {
		out = append(out, Violation{Type: ViolationHighRiskClusters, Count: highRiskFrames, Severity: SeverityHigh})
	}

	if len(out) == 0 && aggregateScore > generalActivityMinScore {
		out = append(out, Violation{Type: ViolationGeneralActivity, Count: aggregateScore, Severity: SeverityLow})
	}

	return out
}

func roundInt(v float64) int {
	return int(math.Round(v))
}
