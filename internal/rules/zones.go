package rules

// ZoneEligibility asserts the full zone x detector cross product into
// zone_detector, asserts each detector's excludedZones into zone_excluded,
// evaluates the ruleset's zone_eligible negation rule, and returns the
// derived result as detector -> zone -> eligible. This is the one place
// detect.RunAll needs: whether a given detector should see files
// classified into a given zone at all.
func ZoneEligibility(zones []string, detectorExclusions map[string][]string) (map[string]map[string]bool, error) {
	e, err := NewEngine()
	if err != nil {
		return nil, err
	}

	for detector := range detectorExclusions {
		for _, z := range zones {
			if err := e.AddFact("zone_detector", z, detector); err != nil {
				return nil, err
			}
		}
	}
	for detector, excluded := range detectorExclusions {
		for _, z := range excluded {
			if err := e.AddFact("zone_excluded", z, detector); err != nil {
				return nil, err
			}
		}
	}

	rows, err := e.GetFacts("zone_eligible")
	if err != nil {
		return nil, err
	}

	out := make(map[string]map[string]bool, len(detectorExclusions))
	for detector := range detectorExclusions {
		out[detector] = make(map[string]bool, len(zones))
	}
	for _, row := range rows {
		z, _ := row[0].(string)
		detector, _ := row[1].(string)
		if out[detector] == nil {
			out[detector] = map[string]bool{}
		}
		out[detector][z] = true
	}
	return out, nil
}
